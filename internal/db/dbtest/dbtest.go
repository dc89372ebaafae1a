// Package dbtest connects repository tests to a disposable PostgreSQL database.
// Tests are skipped unless DB_HOST_TEST is set.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/food-delivery/internal/config"
	"github.com/vasiliy-maslov/food-delivery/internal/db"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Connect opens a pool against the test database, applies migrations and
// empties every table before and after the test.
func Connect(t *testing.T) *db.Postgres {
	t.Helper()

	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		t.Skip("DB_HOST_TEST not set, skipping PostgreSQL test")
	}

	cfg := config.PostgresConfig{
		Host:            host,
		Port:            envOr("DB_PORT_TEST", "5432"),
		User:            envOr("DB_USER_TEST", "postgres"),
		Password:        envOr("DB_PASSWORD_TEST", "postgres"),
		DBName:          envOr("DB_NAME_TEST", "delivery_test"),
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MigrationsPath:  migrationsPath(),
	}

	ctx := context.Background()
	pg, err := db.New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, pg.ApplyMigrations(cfg))

	truncate(t, pg)
	t.Cleanup(func() {
		truncate(t, pg)
		pg.Close()
	})

	return pg
}

func truncate(t *testing.T, pg *db.Postgres) {
	t.Helper()
	_, err := pg.Pool.Exec(context.Background(),
		"TRUNCATE TABLE order_lines, orders, basket_lines, dishes RESTART IDENTITY CASCADE")
	require.NoError(t, err, "failed to truncate tables")
}
