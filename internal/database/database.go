// Package database はSQL接続・マイグレーション・Redis接続を扱います。
package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// 対応しているドライバ名 (DB_DRIVER)
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverSQLite3  = "sqlite3"
)

// MySQLDSN は個別の接続情報からMySQL接続文字列 (DSN) を構築します。
func MySQLDSN(user, pass, host, port, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// normalizeMySQLDSN は DATETIME を time.Time で受け取れるよう parseTime を強制します。
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// UPDATE の件数を「変更行」ではなく「一致行」で返させる
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

// poolSettingsFor はドライバーごとのコネクションプール設定を返します。
// sqlite3 の :memory: はコネクションごとに別DBになるため、1本を張りっぱなしにします。
func poolSettingsFor(driver string) poolSettings {
	if driver == DriverSQLite3 {
		return poolSettings{maxOpen: 1, maxIdle: 1, maxLifetime: 0}
	}
	return poolSettings{maxOpen: 25, maxIdle: 25, maxLifetime: 5 * time.Minute}
}

// Open はデータベース接続を初期化し、疎通確認まで行います。
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverMySQL:
		normalized, err := normalizeMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = normalized
	case DriverPostgres, DriverSQLite3:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pool := poolSettingsFor(driver)
	db.SetMaxOpenConns(pool.maxOpen)
	db.SetMaxIdleConns(pool.maxIdle)
	db.SetConnMaxLifetime(pool.maxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
