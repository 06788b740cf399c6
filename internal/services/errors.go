package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials はメール不明とパスワード不一致の両方で返します。
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("this email is already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrTaskNotFound       = errors.New("task not found")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError は最初に違反した入力制約を表します。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
