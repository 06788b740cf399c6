package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tidytasks/backend/internal/config"
	"tidytasks/backend/internal/database"
	"tidytasks/backend/internal/logger"
	"tidytasks/backend/internal/mailer"
	"tidytasks/backend/internal/repositories"
	"tidytasks/backend/internal/routes"
	"tidytasks/backend/internal/services"
)

func main() {
	os.Exit(start())
}

func start() int {
	// .env がなければ環境変数だけで動かす
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode(log, run(cfg, log))
}

// exitCode は終了理由をログに残し、バッファを書き出してから終了コードを返します。
func exitCode(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("server exited with error", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.DBDriver, log); err != nil {
		return err
	}

	var resetTokens repositories.ResetTokenStore
	if cfg.RedisURL != "" {
		rdb, err := database.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		resetTokens = repositories.NewRedisResetTokenRepo(rdb)
		log.Info("reset tokens stored in redis")
	} else {
		sqlTokens := repositories.NewSQLResetTokenRepo(db)
		resetTokens = sqlTokens
		go runResetTokenJanitor(ctx, sqlTokens, cfg.ResetCleanupInterval, log)
	}

	m := mailer.New(mailer.Config{
		SendGridAPIKey: cfg.SendGridAPIKey,
		SMTP: mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		},
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	}, log)

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	userService := services.NewUserService(
		repositories.NewUserRepository(db),
		resetTokens,
		jwtService,
		m,
		log,
		services.UserServiceConfig{
			FrontendURL:   cfg.FrontendURL,
			ResetTokenTTL: cfg.ResetTokenTTL,
			MailTimeout:   cfg.MailTimeout,
		},
	)
	taskService := services.NewTaskService(repositories.NewTaskRepository(db))

	router := routes.SetupRouter(routes.Dependencies{
		Users:       userService,
		Tasks:       taskService,
		DB:          db,
		Logger:      log,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}

	// 送信中のリセットメールを待ってから終了する
	userService.Wait()
	return nil
}

// expiredTokenCleaner は期限切れのリセットトークンを削除できるストアです。
type expiredTokenCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// runResetTokenJanitor は ctx が終わるまで interval ごとに期限切れトークンを削除します。
func runResetTokenJanitor(ctx context.Context, store expiredTokenCleaner, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanupExpired(ctx, time.Now().UTC())
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Warn("reset token cleanup failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				log.Info("removed expired reset tokens", zap.Int64("count", n))
			}
		}
	}
}
