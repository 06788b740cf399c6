package models

import "time"

// User はユーザーのデータベース構造体を表します。
// PasswordHash はJSONに出しません。
type User struct {
	ID           string    `json:"id" db:"id"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	Age          *int      `json:"age,omitempty" db:"age"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"-" db:"updated_at"`
}

type SignupRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"` // 生パスワード
	Age       *int   `json:"age" validate:"omitempty,gte=0"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"` // 生パスワード
}

type RecoverPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// PasswordResetToken はリセットトークンの保存形式です。トークン本体は保存せず、SHA-256 のハッシュだけを持ちます。
type PasswordResetToken struct {
	TokenHash string     `db:"token_hash"`
	UserID    string     `db:"user_id"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}
