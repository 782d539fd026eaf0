package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DatabaseConfig selects the audit database.
type DatabaseConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		// A single writer avoids "database is locked" under concurrent inserts.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

const createQueryAuditSQLite = `
CREATE TABLE IF NOT EXISTS query_audit (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL DEFAULT '',
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	category    TEXT NOT NULL,
	source      TEXT NOT NULL,
	rule_id     TEXT NOT NULL DEFAULT '',
	confidence  REAL NOT NULL,
	fallback    BOOLEAN NOT NULL DEFAULT 0,
	cached      BOOLEAN NOT NULL DEFAULT 0,
	mode        TEXT NOT NULL,
	latency_ms  INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
)`

const createQueryAuditPostgres = `
CREATE TABLE IF NOT EXISTS query_audit (
	id          UUID PRIMARY KEY,
	user_id     TEXT NOT NULL DEFAULT '',
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	category    TEXT NOT NULL,
	source      TEXT NOT NULL,
	rule_id     TEXT NOT NULL DEFAULT '',
	confidence  DOUBLE PRECISION NOT NULL,
	fallback    BOOLEAN NOT NULL DEFAULT FALSE,
	cached      BOOLEAN NOT NULL DEFAULT FALSE,
	mode        TEXT NOT NULL,
	latency_ms  BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

const createQueryAuditIndex = `CREATE INDEX IF NOT EXISTS idx_query_audit_created_at ON query_audit (created_at)`

// Migrate creates the audit schema for the given driver.
func Migrate(ctx context.Context, db DB, driver string) error {
	var ddl string
	switch driver {
	case DriverSQLite:
		ddl = createQueryAuditSQLite
	case DriverPostgres:
		ddl = createQueryAuditPostgres
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	for _, stmt := range []string{ddl, createQueryAuditIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate query_audit: %w", err)
		}
	}
	return nil
}
