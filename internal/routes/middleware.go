package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tidytasks/backend/internal/handlers"
)

// TokenVerifier はセッショントークンを検証してユーザーIDを返します。
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// AuthMiddleware はBearerトークンを検証し、ユーザーIDをコンテキストに設定するミドルウェアです。
// ヘッダーなし・形式不正・署名不正・期限切れはすべて同じ 401 を返します。
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}

		userID, err := verifier.VerifyToken(token)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(handlers.ContextUserID, userID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
}
