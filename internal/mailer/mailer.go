// Package mailer はパスワードリセットメールの送信を扱います。
// SendGrid / SMTP / ログ出力のみ、の3種類の実装があります。
package mailer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PasswordResetEmail はリセットメール1通分の内容です。
type PasswordResetEmail struct {
	To        string
	Name      string
	ResetURL  string
	ExpiresIn time.Duration
}

// Mailer はリセットメールの送信手段です。
type Mailer interface {
	SendPasswordReset(ctx context.Context, msg PasswordResetEmail) error
}

// Config はメール送信の設定です。
type Config struct {
	SendGridAPIKey string
	SMTP           SMTPConfig
	From           string
	FromName       string
}

// New は設定に応じた Mailer を返します。
// SendGrid のキーがあれば SendGrid、SMTP ホストがあれば SMTP、どちらもなければログ出力のみです。
func New(cfg Config, logger *zap.Logger) Mailer {
	switch {
	case cfg.SendGridAPIKey != "":
		logger.Info("mailer: using sendgrid")
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.From, cfg.FromName)
	case cfg.SMTP.Host != "":
		logger.Info("mailer: using smtp", zap.String("host", cfg.SMTP.Host))
		smtpCfg := cfg.SMTP
		if smtpCfg.From == "" {
			smtpCfg.From = cfg.From
		}
		if smtpCfg.FromName == "" {
			smtpCfg.FromName = cfg.FromName
		}
		return NewSMTPMailer(smtpCfg)
	default:
		logger.Warn("mailer: no credentials configured, reset emails will only be logged")
		return NewLogMailer(logger)
	}
}
