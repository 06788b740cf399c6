package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger はデータベースの疎通確認ができるものです。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はデータベース接続の状態を返します。
func HealthHandler(db Pinger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Database connection failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
