// Package storage persists Trustgate agents, receipts, trust history, tier
// configuration, and webhook registrations in SQLite.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) a SQLite database at path and runs schema migrations.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Enable foreign keys.
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate creates all required tables if they do not already exist.
func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS agents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    provider TEXT NOT NULL,
    spiffe_id TEXT,
    config_hash TEXT NOT NULL,
    capabilities TEXT NOT NULL,
    attestation_type TEXT,
    attestation_data TEXT,
    config_changes INTEGER DEFAULT 0,
    identity_score REAL DEFAULT 0.0,
    config_score REAL DEFAULT 0.0,
    behavior_score REAL DEFAULT 0.0,
    composite_score REAL DEFAULT 0.1,
    tier INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS receipts (
    id TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL,
    action TEXT NOT NULL,
    outcome TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    signature TEXT NOT NULL,
    previous_hash TEXT,
    receipt_hash TEXT NOT NULL,
    FOREIGN KEY (agent_id) REFERENCES agents(id)
);
CREATE INDEX IF NOT EXISTS idx_receipts_agent ON receipts(agent_id);

CREATE TABLE IF NOT EXISTS trust_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id TEXT NOT NULL,
    identity_score REAL NOT NULL,
    config_score REAL NOT NULL,
    behavior_score REAL NOT NULL,
    composite_score REAL NOT NULL,
    tier INTEGER NOT NULL,
    "trigger" TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    FOREIGN KEY (agent_id) REFERENCES agents(id)
);
CREATE INDEX IF NOT EXISTS idx_trust_history_agent ON trust_history(agent_id);

CREATE TABLE IF NOT EXISTS trust_tiers (
    tier INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    min_score REAL NOT NULL,
    max_score REAL NOT NULL,
    description TEXT NOT NULL,
    permissions TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS webhooks (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    events TEXT NOT NULL,
    secret TEXT,
    enabled INTEGER DEFAULT 1,
    created_at INTEGER NOT NULL
);
`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
