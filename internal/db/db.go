// Package db opens the Postgres connection used for project snapshots.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL DEFAULT '',
	snapshot   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS projects_updated_at_idx ON projects (updated_at DESC);
`

// DriverName maps the configured driver to a registered database/sql name.
func DriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "pgx":
		return "pgx", nil
	case "postgres", "pq":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_DRIVER %q (supported: pgx, postgres)", driver)
	}
}

// Open connects, pings and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return conn, nil
}
