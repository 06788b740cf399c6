package services

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService("test-secret", 24*time.Hour)

	token, err := s.GenerateToken("3f0a8a5e-6a7c-4c71-9f5a-0d3c1a0d6f11", "ann@x.com")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "3f0a8a5e-6a7c-4c71-9f5a-0d3c1a0d6f11", claims.UserID)
	assert.Equal(t, "3f0a8a5e-6a7c-4c71-9f5a-0d3c1a0d6f11", claims.Subject)
	assert.Equal(t, "ann@x.com", claims.Email)
}

func TestJWTService_Expired(t *testing.T) {
	s := NewJWTService("test-secret", 24*time.Hour)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	token, err := s.GenerateToken("user-1", "ann@x.com")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(23 * time.Hour) }
	_, err = s.ValidateToken(token)
	require.NoError(t, err, "token should still be valid before expiry")

	s.now = func() time.Time { return issued.Add(24*time.Hour + time.Second) }
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsBadTokens(t *testing.T) {
	s := NewJWTService("test-secret", time.Hour)
	other := NewJWTService("other-secret", time.Hour)

	foreign, err := other.GenerateToken("user-1", "ann@x.com")
	require.NoError(t, err)

	good, err := s.GenerateToken("user-1", "ann@x.com")
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"userId":"user-2","sub":"user-2","exp":9999999999}`))
	tampered := strings.Join(parts, ".")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	noExpToken, err := noExp.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not.a.jwt",
		"wrong secret":   foreign,
		"tampered":       tampered,
		"alg none":       unsigned,
		"missing expiry": noExpToken,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.ValidateToken(token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}
