// Package registry provides the SQLite-backed source registry: sources,
// curated sector edges, and persisted page-route decisions.
package registry

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS source_registry (
	source_id         TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	alt_name          TEXT NOT NULL DEFAULT '',
	tier              TEXT NOT NULL DEFAULT 'UNKNOWN',
	status            TEXT NOT NULL DEFAULT 'PENDING_REVIEW',
	allowed_use       TEXT NOT NULL DEFAULT '',
	access_type       TEXT NOT NULL DEFAULT '',
	sector_category   TEXT NOT NULL DEFAULT '',
	sectors_fed       TEXT NOT NULL DEFAULT '[]',
	geographic_scope  TEXT NOT NULL DEFAULT '',
	confidence_rating TEXT NOT NULL DEFAULT '',
	update_frequency  TEXT NOT NULL DEFAULT '',
	web_url           TEXT NOT NULL DEFAULT '',
	last_fetch        DATETIME,
	historical_start  INTEGER NOT NULL DEFAULT 0,
	historical_end    INTEGER NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS registry_sector_map (
	source_id   TEXT NOT NULL REFERENCES source_registry(source_id) ON DELETE CASCADE,
	sector_code TEXT NOT NULL,
	is_primary  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (source_id, sector_code)
);

CREATE TABLE IF NOT EXISTS registry_page_map (
	source_id   TEXT NOT NULL,
	artifact_id TEXT NOT NULL,
	page_key    TEXT NOT NULL,
	weight      INTEGER NOT NULL,
	rationale   TEXT NOT NULL DEFAULT '',
	is_primary  INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (source_id, artifact_id, page_key)
);

CREATE INDEX IF NOT EXISTS idx_sector_map_sector ON registry_sector_map(sector_code);
CREATE INDEX IF NOT EXISTS idx_source_tier ON source_registry(tier);
CREATE INDEX IF NOT EXISTS idx_source_status ON source_registry(status);
`

// tierRankSQL orders tiers best-first; anything unrecognised sorts last.
const tierRankSQL = `CASE sr.tier WHEN 'T0' THEN 0 WHEN 'T1' THEN 1 WHEN 'T2' THEN 2 WHEN 'T3' THEN 3 WHEN 'T4' THEN 4 ELSE 5 END`

// DB wraps a sql.DB with registry-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite registry and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("registry: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// New wraps an already-open connection without touching the schema.
func New(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Ping checks that the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
