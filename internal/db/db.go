// Package db implements SQLite persistence for ban records, user ban flags,
// and the append-only security event log.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the SQLite database at path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps readers (ban lookups) unblocked during enforcement writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying %s: %w", p, err)
		}
	}

	return &DB{DB: conn}, nil
}

// OpenAndMigrate opens the database and applies the schema.
func OpenAndMigrate(path string) (*DB, error) {
	database, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS banned_users (
		email          TEXT PRIMARY KEY,
		reason         TEXT NOT NULL,
		malicious_code TEXT NOT NULL,
		banned_at      TEXT NOT NULL,
		permanent      INTEGER NOT NULL DEFAULT 1,
		banned_by      TEXT NOT NULL,
		ban_type       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		email      TEXT PRIMARY KEY,
		banned     INTEGER NOT NULL DEFAULT 0,
		ban_reason TEXT,
		banned_at  TEXT
	);

	CREATE TABLE IF NOT EXISTS security_events (
		id               TEXT PRIMARY KEY,
		email            TEXT NOT NULL,
		event_type       TEXT NOT NULL,
		threats          TEXT NOT NULL,
		severity         TEXT NOT NULL,
		matched_snippets TEXT NOT NULL,
		code_snippet     TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		issued_by        TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_security_events_email
		ON security_events(email);
	CREATE INDEX IF NOT EXISTS idx_security_events_created_at
		ON security_events(created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}
