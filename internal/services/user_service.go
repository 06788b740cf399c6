package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tidytasks/backend/internal/mailer"
	"tidytasks/backend/internal/models"
	"tidytasks/backend/internal/repositories"
)

// UserServiceConfig はパスワードリセットまわりの設定です。
type UserServiceConfig struct {
	FrontendURL   string
	ResetTokenTTL time.Duration
	MailTimeout   time.Duration
}

// UserService はユーザー関連のビジネスロジックを扱います。
type UserService struct {
	users       repositories.UserStore
	resetTokens repositories.ResetTokenStore
	jwt         *JWTService
	mailer      mailer.Mailer
	logger      *zap.Logger
	cfg         UserServiceConfig
	now         func() time.Time

	mailWG sync.WaitGroup

	dummyHashOnce sync.Once
	dummyHash     string
}

// NewUserService は新しいUserServiceを作成します。
func NewUserService(
	users repositories.UserStore,
	resetTokens repositories.ResetTokenStore,
	jwtService *JWTService,
	m mailer.Mailer,
	logger *zap.Logger,
	cfg UserServiceConfig,
) *UserService {
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = 10 * time.Second
	}
	return &UserService{
		users:       users,
		resetTokens: resetTokens,
		jwt:         jwtService,
		mailer:      m,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// AuthResult は登録・ログイン成功時の結果です。
type AuthResult struct {
	User  *models.User
	Token string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はユーザーを登録し、セッショントークンを発行します。
func (s *UserService) Register(ctx context.Context, req models.SignupRequest) (*AuthResult, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	hashedPassword, err := hashNewPassword("password", req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Age:          req.Age,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("register user: %w", err)
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate はユーザーを認証し、成功したらトークンを発行します。
func (s *UserService) Authenticate(ctx context.Context, req models.LoginRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			// 応答時間でメールの有無が分からないようにする
			_ = repositories.VerifyPassword(s.unknownUserHash(), req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if err := repositories.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) unknownUserHash() string {
	s.dummyHashOnce.Do(func() {
		s.dummyHash, _ = repositories.HashPassword(uuid.NewString())
	})
	return s.dummyHash
}

// VerifyToken はセッショントークンを検証し、ユーザーIDを返します。
func (s *UserService) VerifyToken(token string) (string, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// GetUser はIDでユーザーを取得します。
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// RequestPasswordReset はリセットトークンを発行してメールを送ります。
// メールアドレスが未登録でも成功扱いにします。メール送信は待ちません。
func (s *UserService) RequestPasswordReset(ctx context.Context, req models.RecoverPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("request password reset: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	record := &models.PasswordResetToken{
		TokenHash: hashResetToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
		CreatedAt: now,
	}
	if err := s.resetTokens.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	msg := mailer.PasswordResetEmail{
		To:        user.Email,
		Name:      user.FirstName,
		ResetURL:  strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset?token=" + url.QueryEscape(token),
		ExpiresIn: s.cfg.ResetTokenTTL,
	}
	s.dispatch(ctx, user.ID, msg)
	return nil
}

// dispatch はリセットメールをバックグラウンドで送ります。失敗はログに残すだけです。
func (s *UserService) dispatch(ctx context.Context, userID string, msg mailer.PasswordResetEmail) {
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.MailTimeout)
		defer cancel()
		if err := s.mailer.SendPasswordReset(sendCtx, msg); err != nil {
			s.logger.Warn("failed to send password reset email", zap.String("user_id", userID), zap.Error(err))
			return
		}
		s.logger.Info("password reset email dispatched", zap.String("user_id", userID))
	}()
}

// Wait は送信中のメールが終わるまで待ちます。
func (s *UserService) Wait() {
	s.mailWG.Wait()
}

// ResetPassword はリセットトークンを消費してパスワードを置き換えます。
func (s *UserService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return ErrInvalidResetToken
	}
	if err := validateStruct(req); err != nil {
		return err
	}

	// ハッシュ化に失敗してもトークンを無駄にしないよう先に計算する
	hashedPassword, err := hashNewPassword("newPassword", req.NewPassword)
	if err != nil {
		return err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	userID, err := s.applyPasswordReset(ctx, hashResetToken(req.Token), hashedPassword, now)
	if err != nil {
		if errors.Is(err, repositories.ErrResetTokenNotFound) || errors.Is(err, repositories.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}
	s.logger.Info("password reset", zap.String("user_id", userID))
	return nil
}

// applyPasswordReset はトークンを消費してパスワードを書き換えます。
// 書き換えに失敗した場合、トークンは未使用のまま残ります。
func (s *UserService) applyPasswordReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	if resetter, ok := s.resetTokens.(repositories.PasswordResetter); ok {
		return resetter.ResetPassword(ctx, tokenHash, passwordHash, now)
	}

	userID, err := s.resetTokens.Consume(ctx, tokenHash, now)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdatePassword(ctx, userID, passwordHash, now); err != nil {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := s.resetTokens.Release(releaseCtx, tokenHash); rerr != nil {
			s.logger.Error("failed to release reset token", zap.String("user_id", userID), zap.Error(rerr))
		}
		return "", err
	}
	return userID, nil
}

// hashNewPassword は bcrypt の上限 (72 バイト) を超えるパスワードを ValidationError にします。
func hashNewPassword(field, password string) (string, error) {
	hash, err := repositories.HashPassword(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", &ValidationError{Field: field, Message: field + " must be at most 72 bytes"}
	}
	return hash, err
}

// generateResetToken はパスワードリセット用のランダムトークンを生成します。
func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
