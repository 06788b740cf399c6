// Package config は環境変数からアプリケーション設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tidytasks/backend/internal/database"
)

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	DBDriver    string
	DatabaseURL string
	RedisURL    string

	JWTSecret     string
	JWTTTL        time.Duration
	ResetTokenTTL time.Duration

	CORSAllowedOrigins []string
	FrontendURL        string

	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPassword   string
	MailFrom       string
	MailFromName   string
	MailTimeout    time.Duration

	ResetCleanupInterval time.Duration
}

// IsProduction は本番環境かどうかを返します。
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load は環境変数から設定を読み込みます。JWT_SECRET は必須です。
func Load() (Config, error) {
	var errs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := getenvDuration(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg := Config{
		Port:     getenv("PORT", "8080"),
		AppEnv:   getenv("APP_ENV", "development"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DBDriver:    getenv("DB_DRIVER", database.DriverMySQL),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTL:        duration("JWT_TTL", 24*time.Hour),
		ResetTokenTTL: duration("RESET_TOKEN_TTL", time.Hour),

		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		FrontendURL:        getenv("FRONTEND_URL", "http://localhost:3000"),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       getenv("SMTP_PORT", "587"),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		MailFrom:       getenv("MAIL_FROM", "no-reply@tidytasks.local"),
		MailFromName:   getenv("MAIL_FROM_NAME", "Tidy Tasks"),
		MailTimeout:    duration("MAIL_TIMEOUT", 10*time.Second),

		ResetCleanupInterval: duration("RESET_CLEANUP_INTERVAL", 15*time.Minute),
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable not set"))
	}

	switch cfg.DBDriver {
	case database.DriverMySQL:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = database.MySQLDSN(
				os.Getenv("DB_USER"),
				os.Getenv("DB_PASS"),
				getenv("DB_HOST", "127.0.0.1"),
				getenv("DB_PORT", "3306"),
				os.Getenv("DB_NAME"),
			)
		}
	case database.DriverPostgres, database.DriverSQLite3:
		if cfg.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for DB_DRIVER=%s", cfg.DBDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of mysql, pgx, sqlite3 (got %q)", cfg.DBDriver))
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must list at least one origin"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fallback, fmt.Errorf("%s must be positive (got %s)", key, value)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
