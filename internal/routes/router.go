// Package routes はルーティングとミドルウェアを提供します。
package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tidytasks/backend/internal/handlers"
	"tidytasks/backend/internal/services"
)

// Dependencies はルーターが必要とするサービス群です。
type Dependencies struct {
	Users       *services.UserService
	Tasks       *services.TaskService
	DB          handlers.Pinger
	Logger      *zap.Logger
	CORSOrigins []string
}

// CORSConfig は許可するオリジンの一覧から CORS 設定を組み立てます。
// "*" を含む場合は全オリジンを許可し、資格情報は許可しません。
func CORSConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.MaxAge = 12 * time.Hour

	for _, o := range origins {
		if o == "*" {
			config.AllowAllOrigins = true
			return config
		}
	}
	config.AllowOrigins = origins
	config.AllowCredentials = true
	return config
}

// SetupRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(deps.Logger), Recovery(deps.Logger))
	r.Use(cors.New(CORSConfig(deps.CORSOrigins)))

	userHandler := handlers.NewUserHandler(deps.Users, deps.Logger)
	taskHandler := handlers.NewTaskHandler(deps.Tasks, deps.Logger)
	requireAuth := AuthMiddleware(deps.Users)

	api := r.Group("/api")
	api.GET("/health", handlers.HealthHandler(deps.DB, deps.Logger))

	auth := api.Group("/auth")
	{
		auth.POST("/signup", userHandler.SignupHandler)
		auth.POST("/login", userHandler.LoginHandler)
		auth.POST("/recover-password", userHandler.RecoverPasswordHandler)
		auth.POST("/reset-password", userHandler.ResetPasswordHandler)
		auth.POST("/logout", requireAuth, userHandler.LogoutHandler)
		auth.GET("/me", requireAuth, userHandler.MeHandler)
	}

	tasks := api.Group("/tasks")
	tasks.Use(requireAuth)
	{
		tasks.POST("", taskHandler.CreateTaskHandler)
		tasks.GET("", taskHandler.GetTasksHandler)
		tasks.GET("/:id", taskHandler.GetTaskByIDHandler)
		tasks.PUT("/:id", taskHandler.UpdateTaskHandler)
		tasks.DELETE("/:id", taskHandler.DeleteTaskHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return r
}
