package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer は送信せずにリセットURLをログに出すだけの Mailer です。
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, msg PasswordResetEmail) error {
	m.logger.Info("password reset email (not sent, mail delivery disabled)",
		zap.String("to", msg.To),
		zap.String("reset_url", msg.ResetURL),
		zap.Duration("expires_in", msg.ExpiresIn),
	)
	return nil
}
