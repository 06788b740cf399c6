package database

import (
	"context"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN("todo", "p@ss", "db", "3306", "tidytasks")

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "todo", cfg.User)
	assert.Equal(t, "p@ss", cfg.Passwd)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "tidytasks", cfg.DBName)
	assert.True(t, cfg.ParseTime)
}

func TestNormalizeMySQLDSN(t *testing.T) {
	dsn, err := normalizeMySQLDSN("todo:pw@tcp(127.0.0.1:3306)/tidytasks")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.ClientFoundRows)

	_, err = normalizeMySQLDSN("this is not a dsn")
	assert.Error(t, err)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "whatever")
	assert.Error(t, err)
}

func TestMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite3, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, DriverSQLite3, zap.NewNop()))
	// 2回目は何もしない
	require.NoError(t, Migrate(ctx, db, DriverSQLite3, zap.NewNop()))

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'tasks', 'password_reset_tokens') ORDER BY name`))
	assert.Equal(t, []string{"password_reset_tokens", "tasks", "users"}, tables)
}

func TestMigrationsEmbeddedForEveryDriver(t *testing.T) {
	for _, driver := range []string{DriverMySQL, DriverPostgres, DriverSQLite3} {
		_, dir, err := dialectFor(driver)
		require.NoError(t, err)
		entries, err := migrations.ReadDir(dir)
		require.NoError(t, err, driver)
		assert.NotEmpty(t, entries, driver)
	}
	_, _, err := dialectFor("oracle")
	assert.Error(t, err)
}

func TestPoolSettingsFor(t *testing.T) {
	sqlite := poolSettingsFor(DriverSQLite3)
	assert.Equal(t, 1, sqlite.maxOpen)
	assert.Equal(t, 1, sqlite.maxIdle)
	assert.Zero(t, sqlite.maxLifetime, "an in-memory database must never be recycled")

	for _, driver := range []string{DriverMySQL, DriverPostgres} {
		pool := poolSettingsFor(driver)
		assert.Equal(t, 25, pool.maxOpen, driver)
		assert.Equal(t, 5*time.Minute, pool.maxLifetime, driver)
	}

	db, err := Open(context.Background(), DriverSQLite3, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}
