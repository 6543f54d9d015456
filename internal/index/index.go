// Package index provides SQLite-backed indexing of update records with
// optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// QueueIndex defines the interface for queue indexing operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type QueueIndex interface {
	UpsertRecord(r RecordRow, body string) error
	DeleteRecord(origin, path string) error
	GetChecksum(origin, path string) (string, error)
	ListRecords(f Filter) ([]RecordRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums(origin string) (map[string]string, error)
	Close() error
}

// Verify *DB satisfies QueueIndex at compile time.
var _ QueueIndex = (*DB)(nil)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS updates (
	origin      TEXT NOT NULL,
	path        TEXT NOT NULL,
	id          TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT 'normal',
	scope       TEXT NOT NULL DEFAULT '',
	scope_inferred INTEGER NOT NULL DEFAULT 0,
	update_type TEXT NOT NULL DEFAULT 'general',
	checksum    TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	indexed_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (origin, path)
);

CREATE INDEX IF NOT EXISTS idx_updates_id ON updates(id);
CREATE INDEX IF NOT EXISTS idx_updates_priority ON updates(priority);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
