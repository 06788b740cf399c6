package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"tidytasks/backend/internal/models"
)

// ErrResetTokenNotFound は未知・期限切れ・使用済みのいずれかのリセットトークンを表します。
var ErrResetTokenNotFound = errors.New("reset token not found")

// ResetTokenStore はパスワードリセットトークンを保存します。
// Consume は issued → consumed の遷移を一度だけ成功させ、所有ユーザーのIDを返します。
// Release は後続の処理が失敗したときに Consume を取り消します。
type ResetTokenStore interface {
	Save(ctx context.Context, t *models.PasswordResetToken) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
	Release(ctx context.Context, tokenHash string) error
}

// PasswordResetter はトークンの消費とパスワードの更新を1トランザクションで行えるストアです。
// users テーブルと同じデータベースにトークンを持つ場合にだけ実装します。
type PasswordResetter interface {
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
}

// SQLResetTokenRepo は ResetTokenStore のSQL実装です。
type SQLResetTokenRepo struct {
	db *sqlx.DB
}

func NewSQLResetTokenRepo(db *sqlx.DB) *SQLResetTokenRepo {
	return &SQLResetTokenRepo{db: db}
}

func (r *SQLResetTokenRepo) Save(ctx context.Context, t *models.PasswordResetToken) error {
	query := r.db.Rebind(`INSERT INTO password_reset_tokens (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, t.TokenHash, t.UserID, t.ExpiresAt, t.CreatedAt); err != nil {
		return fmt.Errorf("could not save reset token: %w", err)
	}
	return nil
}

func (r *SQLResetTokenRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	return consumeResetToken(ctx, r.db, tokenHash, now)
}

// Release は使用済みにしたトークンを未使用に戻します。
func (r *SQLResetTokenRepo) Release(ctx context.Context, tokenHash string) error {
	query := r.db.Rebind(`UPDATE password_reset_tokens SET used_at = NULL WHERE token_hash = ?`)
	if _, err := r.db.ExecContext(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("could not release reset token: %w", err)
	}
	return nil
}

// ResetPassword はトークンを消費し、持ち主のパスワードを同じトランザクションで書き換えます。
// どちらかが失敗すればトークンは未使用のまま残ります。
func (r *SQLResetTokenRepo) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("could not begin password reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	userID, err := consumeResetToken(ctx, tx, tokenHash, now)
	if err != nil {
		return "", err
	}

	update := tx.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	res, err := tx.ExecContext(ctx, update, passwordHash, now, userID)
	if err != nil {
		return "", fmt.Errorf("could not update password: %w", err)
	}
	if err := expectOneRow(res, ErrUserNotFound); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("could not commit password reset: %w", err)
	}
	return userID, nil
}

func consumeResetToken(ctx context.Context, q sqlx.ExtContext, tokenHash string, now time.Time) (string, error) {
	query := q.Rebind(`SELECT token_hash, user_id, expires_at, used_at, created_at FROM password_reset_tokens WHERE token_hash = ?`)
	var t models.PasswordResetToken
	if err := sqlx.GetContext(ctx, q, &t, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrResetTokenNotFound
		}
		return "", fmt.Errorf("could not query reset token: %w", err)
	}
	if t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return "", ErrResetTokenNotFound
	}

	// used_at IS NULL 条件で同時利用を1件に絞る
	update := q.Rebind(`UPDATE password_reset_tokens SET used_at = ? WHERE token_hash = ? AND used_at IS NULL`)
	res, err := q.ExecContext(ctx, update, now, tokenHash)
	if err != nil {
		return "", fmt.Errorf("could not mark reset token used: %w", err)
	}
	if err := expectOneRow(res, ErrResetTokenNotFound); err != nil {
		return "", err
	}
	return t.UserID, nil
}

// CleanupExpired は使用済み・期限切れのトークンを削除し、削除件数を返します。
func (r *SQLResetTokenRepo) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM password_reset_tokens WHERE used_at IS NOT NULL OR expires_at < ?`)
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("could not cleanup reset tokens: %w", err)
	}
	return res.RowsAffected()
}
