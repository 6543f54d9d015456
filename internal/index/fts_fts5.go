//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS updates_fts USING fts5(
			origin UNINDEXED,
			path UNINDEXED,
			id,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, origin, path, id, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM updates_fts WHERE origin = ? AND path = ?`, origin, path)
	_, err := tx.Exec(`INSERT INTO updates_fts (origin, path, id, title, body) VALUES (?, ?, ?, ?, ?)`,
		origin, path, id, title, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, origin, path string) {
	_, _ = tx.Exec(`DELETE FROM updates_fts WHERE origin = ? AND path = ?`, origin, path)
}

// Search performs an FTS5 full-text search and returns matching records
// with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT origin,
		       path,
		       id,
		       title,
		       snippet(updates_fts, 4, '<b>', '</b>', '...', 64)
		FROM updates_fts
		WHERE updates_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Origin, &r.Path, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
