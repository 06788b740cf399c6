package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tidytasks/backend/internal/models"
)

// RedisResetTokenRepo はリセットトークンをTTL付きのキーとして保存します。
// 期限切れはRedis側の失効に任せます。使用時はキーを使用済みの名前へ RENAME し、
// 残りTTLを保ったまま Release で元に戻せるようにします。
type RedisResetTokenRepo struct {
	client     *redis.Client
	prefix     string
	usedPrefix string
}

func NewRedisResetTokenRepo(client *redis.Client) *RedisResetTokenRepo {
	return &RedisResetTokenRepo{client: client, prefix: "password_reset:", usedPrefix: "password_reset_used:"}
}

func (r *RedisResetTokenRepo) key(tokenHash string) string {
	return r.prefix + tokenHash
}

func (r *RedisResetTokenRepo) usedKey(tokenHash string) string {
	return r.usedPrefix + tokenHash
}

// KEYS[1] を KEYS[2] へ移し、値を返す。KEYS[1] がなければ nil。
var moveResetToken = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return false
end
redis.call('RENAME', KEYS[1], KEYS[2])
return v
`)

func (r *RedisResetTokenRepo) Save(ctx context.Context, t *models.PasswordResetToken) error {
	ttl := t.ExpiresAt.Sub(t.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("reset token already expired")
	}
	if err := r.client.Set(ctx, r.key(t.TokenHash), t.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("could not save reset token: %w", err)
	}
	return nil
}

func (r *RedisResetTokenRepo) Consume(ctx context.Context, tokenHash string, _ time.Time) (string, error) {
	userID, err := moveResetToken.Run(ctx, r.client, []string{r.key(tokenHash), r.usedKey(tokenHash)}).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrResetTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("could not consume reset token: %w", err)
	}
	return userID, nil
}

// Release は使用済みキーを元に戻します。その間に失効していれば何もしません。
func (r *RedisResetTokenRepo) Release(ctx context.Context, tokenHash string) error {
	err := moveResetToken.Run(ctx, r.client, []string{r.usedKey(tokenHash), r.key(tokenHash)}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("could not release reset token: %w", err)
	}
	return nil
}
