// Package repositories はデータベース操作を行うリポジトリを提供します。
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt" // パスワードのハッシュ化用

	"tidytasks/backend/internal/models"
)

var (
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrUserNotFound   = errors.New("user not found")
)

// UserStore はユーザーの永続化を抽象化します。
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// HashPassword は与えられたパスワードをbcryptでハッシュ化します。
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedPassword), nil
}

// VerifyPassword はハッシュ化されたパスワードと平文のパスワードを比較します。
func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// UserRepository は UserStore のSQL実装です。
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository は新しいUserRepositoryインスタンスを作成します。
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, first_name, last_name, email, age, password_hash, created_at, updated_at"

// Create は新しいユーザーをデータベースに挿入します。
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.FirstName, u.LastName, u.Email, u.Age, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("could not insert user: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスでユーザーを検索します。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID はIDでユーザーを検索します。
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *UserRepository) findOne(ctx context.Context, column, value string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)
	var u models.User
	if err := r.db.GetContext(ctx, &u, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("could not query user by %s: %w", column, err)
	}
	return &u, nil
}

// UpdatePassword はユーザーのパスワードを更新します。
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	query := r.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, passwordHash, updatedAt, id)
	if err != nil {
		return fmt.Errorf("could not update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not update password: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
