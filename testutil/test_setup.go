// Package testutil はHTTPレベルのテストで使う共通のセットアップを提供します。
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tidytasks/backend/internal/mailer"
	"tidytasks/backend/internal/models"
	"tidytasks/backend/internal/repositories"
	"tidytasks/backend/internal/routes"
	"tidytasks/backend/internal/services"
)

const TestJWTSecret = "test-secret"

// RecordingMailer は送信されたリセットメールを記録する Mailer です。
type RecordingMailer struct {
	mu   sync.Mutex
	sent []mailer.PasswordResetEmail
}

func (m *RecordingMailer) SendPasswordReset(_ context.Context, msg mailer.PasswordResetEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent は記録済みのメールのコピーを返します。
func (m *RecordingMailer) Sent() []mailer.PasswordResetEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.PasswordResetEmail(nil), m.sent...)
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

// TestEnv はテスト用ルーターと、その裏にあるストア・サービスです。
type TestEnv struct {
	Router      *gin.Engine
	Users       *repositories.MemoryUserStore
	Tasks       *repositories.MemoryTaskStore
	ResetTokens *repositories.MemoryResetTokenStore
	Mailer      *RecordingMailer
	UserService *services.UserService
	JWT         *services.JWTService
}

// SetupTestRouter はインメモリのストアでテスト用のGinルーターをセットアップします。
func SetupTestRouter(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &TestEnv{
		Users:       repositories.NewMemoryUserStore(),
		Tasks:       repositories.NewMemoryTaskStore(),
		ResetTokens: repositories.NewMemoryResetTokenStore(),
		Mailer:      &RecordingMailer{},
		JWT:         services.NewJWTService(TestJWTSecret, 24*time.Hour),
	}
	logger := zap.NewNop()
	env.UserService = services.NewUserService(env.Users, env.ResetTokens, env.JWT, env.Mailer, logger,
		services.UserServiceConfig{FrontendURL: "http://localhost:3000", ResetTokenTTL: time.Hour, MailTimeout: time.Second})
	t.Cleanup(env.UserService.Wait)

	env.Router = routes.SetupRouter(routes.Dependencies{
		Users:       env.UserService,
		Tasks:       services.NewTaskService(env.Tasks),
		DB:          okPinger{},
		Logger:      logger,
		CORSOrigins: []string{"http://localhost:3000"},
	})
	return env
}

// DoJSON はJSON本文付きのリクエストを送り、レスポンスを返します。token が空なら認証ヘッダーを付けません。
func DoJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// SignupAndGetToken はユーザーを登録してトークンを返します。
func SignupAndGetToken(t *testing.T, router http.Handler, firstName, email, password string) string {
	t.Helper()
	w := DoJSON(t, router, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"firstName": firstName,
		"lastName":  "Tester",
		"email":     email,
		"password":  password,
	})
	require.Equal(t, http.StatusCreated, w.Code, "signup failed: %s", w.Body.String())

	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

// LoginAndGetToken はログインしてトークンを返します。
func LoginAndGetToken(t *testing.T, router http.Handler, email, password string) (string, error) {
	t.Helper()
	w := DoJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if w.Code != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d: %s", w.Code, w.Body.String())
	}

	var loginRes map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &loginRes); err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}
	token, ok := loginRes["token"].(string)
	if !ok {
		return "", errors.New("token not found or not a string in login response")
	}
	return token, nil
}

// CreateTestTask はAPI経由でタスクを作成します。
func CreateTestTask(t *testing.T, router http.Handler, token, title, dueDate string) models.Task {
	t.Helper()
	w := DoJSON(t, router, http.MethodPost, "/api/tasks", token, map[string]any{
		"title":   title,
		"dueDate": dueDate,
	})
	require.Equal(t, http.StatusCreated, w.Code, "タスク作成に失敗しました: %s", w.Body.String())

	var task models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	return task
}
