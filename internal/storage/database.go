package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database handle at the given path.
// The handle is lazy: no connection is made until the first ping or query,
// so callers can probe availability with bounded retries.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// schemaVersion is the current schema version. Migrations are additive: an
// upgrade must not destroy data belonging to tables it does not touch.
const schemaVersion = 1

// migrations[i] upgrades the schema from version i to version i+1.
var migrations = [][]string{
	// v0 -> v1: initial schema
	{
		`CREATE TABLE IF NOT EXISTS sources (
			source_id TEXT PRIMARY KEY,
			headers TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id TEXT NOT NULL,
			fields TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rows_source ON rows(source_id);`,
		`CREATE TABLE IF NOT EXISTS row_tokens (
			token TEXT NOT NULL,
			row_id INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_row_tokens_token ON row_tokens(token);`,
		`CREATE INDEX IF NOT EXISTS idx_row_tokens_row ON row_tokens(row_id);`,
	},
}

// Migrate brings the database schema up to the current version.
// It is idempotent and can be run multiple times safely.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&current)
	if err == sql.ErrNoRows {
		current = 0
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (0)"); err != nil {
			return fmt.Errorf("failed to seed schema version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for v := current; v < schemaVersion; v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration to v%d: %w", v+1, err)
		}
		for _, stmt := range migrations[v] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration to v%d failed: %w", v+1, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", v+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record schema version v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration to v%d: %w", v+1, err)
		}
	}

	return nil
}
