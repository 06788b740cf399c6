package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

func dialectFor(driver string) (goose.Dialect, string, error) {
	switch driver {
	case DriverMySQL:
		return goose.DialectMySQL, "migrations/mysql", nil
	case DriverPostgres:
		return goose.DialectPostgres, "migrations/postgres", nil
	case DriverSQLite3:
		return goose.DialectSQLite3, "migrations/sqlite3", nil
	}
	return "", "", fmt.Errorf("no migrations for driver %q", driver)
}

// Migrate は埋め込みのマイグレーションを最新まで適用します。
func Migrate(ctx context.Context, db *sqlx.DB, driver string, logger *zap.Logger) error {
	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return err
	}
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
	return nil
}
