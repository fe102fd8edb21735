// Package sqlite is the embedded account store, for single-node deployments
// and local development.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    given_name    TEXT NOT NULL,
    family_name   TEXT NOT NULL,
    role          TEXT NOT NULL CHECK (role IN ('admin', 'supervisor', 'agent')),
    active        INTEGER NOT NULL DEFAULT 1,
    created_at    INTEGER NOT NULL, -- Unix nanoseconds
    updated_at    INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS accounts_email_key ON accounts(lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS accounts_single_admin ON accounts(role) WHERE role = 'admin';
CREATE INDEX IF NOT EXISTS accounts_role_idx ON accounts(role);

CREATE TABLE IF NOT EXISTS account_audit (
    id              TEXT PRIMARY KEY,
    action          TEXT NOT NULL,
    actor_id        TEXT,
    actor_username  TEXT,
    target_id       TEXT NOT NULL,
    target_username TEXT NOT NULL,
    target_role     TEXT NOT NULL,
    fields          TEXT NOT NULL DEFAULT '[]', -- JSON array
    occurred_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS account_audit_target_idx ON account_audit(target_id, occurred_at);
`

// Open opens the database at path, applies the schema, and returns the
// handle. The parent directory is created when missing.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single connection also keeps an
	// in-memory database alive for the life of the handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}
