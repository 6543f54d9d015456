package index

import (
	"fmt"
	"strings"
	"time"
)

// RecordRow represents a row in the updates table.
type RecordRow struct {
	Origin        string
	Path          string
	ID            string
	Title         string
	Priority      string
	Scope         string
	ScopeInferred bool
	UpdateType    string
	Checksum      string
	IndexedAt     time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Origin  string
	Path    string
	ID      string
	Title   string
	Snippet string
}

// Filter narrows ListRecords results.
type Filter struct {
	Origin   string
	Priority string
	Limit    int
	Offset   int
}

// UpsertRecord inserts or replaces a record and its FTS entry within a
// transaction.
func (db *DB) UpsertRecord(r RecordRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO updates (origin, path, id, title, priority, scope, scope_inferred, update_type, checksum, body, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(origin, path) DO UPDATE SET
			id             = excluded.id,
			title          = excluded.title,
			priority       = excluded.priority,
			scope          = excluded.scope,
			scope_inferred = excluded.scope_inferred,
			update_type    = excluded.update_type,
			checksum       = excluded.checksum,
			body           = excluded.body,
			indexed_at     = excluded.indexed_at
	`, r.Origin, r.Path, r.ID, r.Title, r.Priority, r.Scope, r.ScopeInferred, r.UpdateType, r.Checksum, body, r.IndexedAt)
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Origin, r.Path, r.ID, r.Title, body); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteRecord removes a record and its FTS entry.
func (db *DB) DeleteRecord(origin, path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, origin, path)
	_, _ = tx.Exec(`DELETE FROM updates WHERE origin = ? AND path = ?`, origin, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a record, or empty string
// if not indexed.
func (db *DB) GetChecksum(origin, path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM updates WHERE origin = ? AND path = ?`, origin, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed record in origin.
func (db *DB) AllChecksums(origin string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM updates WHERE origin = ?`, origin)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListRecords returns records matching f plus the total match count.
// Results come back newest-first by indexed_at.
func (db *DB) ListRecords(f Filter) ([]RecordRow, int, error) {
	var conds []string
	var args []any
	if f.Origin != "" {
		conds = append(conds, "origin = ?")
		args = append(args, f.Origin)
	}
	if f.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, f.Priority)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM updates`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count records: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT origin, path, id, title, priority, scope, scope_inferred, update_type, checksum, indexed_at
		FROM updates` + where + `
		ORDER BY indexed_at DESC, id
		LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.Origin, &r.Path, &r.ID, &r.Title, &r.Priority,
			&r.Scope, &r.ScopeInferred, &r.UpdateType, &r.Checksum, &r.IndexedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
