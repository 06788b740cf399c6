package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidytasks/backend/internal/services"
	"tidytasks/backend/testutil"
)

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := testutil.SetupTestRouter(t)
	testutil.SignupAndGetToken(t, env.Router, "Normal", "normal_user@example.com", "password123")

	token, err := testutil.LoginAndGetToken(t, env.Router, "normal_user@example.com", "password123")
	require.NoError(t, err)

	w := testutil.DoJSON(t, env.Router, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "normal_user@example.com", response.User["email"])
	assert.Equal(t, "Normal", response.User["firstName"])
	assert.NotContains(t, response.User, "passwordHash")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	env := testutil.SetupTestRouter(t)
	testutil.SignupAndGetToken(t, env.Router, "Normal", "normal_user@example.com", "password123")
	user, err := env.Users.FindByEmail(context.Background(), "normal_user@example.com")
	require.NoError(t, err)

	expired, err := services.NewJWTService(testutil.TestJWTSecret, -time.Minute).GenerateToken(user.ID, user.Email)
	require.NoError(t, err)
	foreign, err := services.NewJWTService("some-other-secret", time.Hour).GenerateToken(user.ID, user.Email)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":          "invalid.jwt.token",
		"expired":          expired,
		"wrong signer":     foreign,
		"not a jwt at all": "hello",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			for _, path := range []string{"/api/auth/me", "/api/tasks"} {
				w := testutil.DoJSON(t, env.Router, http.MethodGet, path, token, nil)
				assert.Equal(t, http.StatusUnauthorized, w.Code, path)
				assert.Equal(t, `Bearer realm="api"`, w.Header().Get("WWW-Authenticate"))

				var response map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "Invalid or expired token", response["error"])
			}
		})
	}
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	env := testutil.SetupTestRouter(t)

	for _, path := range []string{"/api/auth/me", "/api/tasks", "/api/tasks/anything"} {
		w := testutil.DoJSON(t, env.Router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	// 認証不要のエンドポイントはトークンなしで通る
	w := testutil.DoJSON(t, env.Router, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
