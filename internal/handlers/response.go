// Package handlers はHTTPハンドラーを提供します。
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tidytasks/backend/internal/services"
)

// ContextUserID は認証ミドルウェアが検証済みのユーザーIDを格納するキーです。
const ContextUserID = "user_id"

// currentUserID はコンテキストからユーザーIDを取り出します。
func currentUserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserID)
	return id, id != ""
}

// bindJSON は本文をデコードします。空の本文は空のオブジェクトとして扱います。
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return false
	}
	return true
}

// respondError はサービス層のエラーをHTTPステータスに変換します。
// 想定外のエラーは内容を返さずにログへ出します。
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "This email is already registered"})
	case errors.Is(err, services.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
