package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tidytasks/backend/internal/models"
	"tidytasks/backend/internal/services"
)

// UserHandler は認証関連のハンドラーを管理します。
type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

// NewUserHandler は新しいUserHandlerを作成します。
func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

// SignupHandler はユーザー登録を処理します。
func (h *UserHandler) SignupHandler(c *gin.Context) {
	var req models.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"userId":  res.User.ID,
		"token":   res.Token,
		"user":    res.User,
	})
}

// LoginHandler はユーザーログインを処理します。
func (h *UserHandler) LoginHandler(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.userService.Authenticate(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   res.Token,
		"user":    res.User,
	})
}

// LogoutHandler はログアウトを処理します。トークンはステートレスなので破棄はクライアント側です。
func (h *UserHandler) LogoutHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// MeHandler はログイン中のユーザー情報を返します。
func (h *UserHandler) MeHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// RecoverPasswordHandler はパスワードリセットリクエストを処理します。
// 登録の有無に関わらず同じ応答を返します。
func (h *UserHandler) RecoverPasswordHandler(c *gin.Context) {
	var req models.RecoverPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.RequestPasswordReset(c.Request.Context(), req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "If that email is registered, a reset link has been sent"})
}

// ResetPasswordHandler はリセットトークンで新しいパスワードを設定します。
func (h *UserHandler) ResetPasswordHandler(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password has been reset"})
}
