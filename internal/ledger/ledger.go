// Package ledger tracks which update ids a project has already applied.
// The ledger is a single JSON document, append-only per id: an id appears
// at most once, and application is skipped for ledgered ids.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion is the current ledger document version.
const SchemaVersion = 1

// Entry records one applied update.
type Entry struct {
	ID         string    `json:"id"`
	AppliedAt  time.Time `json:"appliedAt"`
	AppliedBy  string    `json:"appliedBy"`
	UpdateType string    `json:"updateType"`
}

type document struct {
	SchemaVersion int     `json:"schemaVersion"`
	Applied       []Entry `json:"applied"`
}

// Ledger is the in-memory view of a project's applied-updates file.
type Ledger struct {
	path    string
	entries []Entry
	ids     map[string]struct{}
}

// Load reads the ledger at path. A missing file is an empty ledger,
// not an error.
func Load(path string) (*Ledger, error) {
	l := &Ledger{path: path, ids: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ledger: parse %s: %w", path, err)
	}
	for _, e := range doc.Applied {
		if _, dup := l.ids[e.ID]; dup {
			continue
		}
		l.ids[e.ID] = struct{}{}
		l.entries = append(l.entries, e)
	}
	return l, nil
}

// Contains reports whether id has already been applied.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Entries returns a copy of all ledger entries in application order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of applied ids.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Append records id as applied and persists the ledger atomically.
// Appending an id that is already present returns an error and leaves
// the file untouched.
func (l *Ledger) Append(e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("ledger: empty id")
	}
	if l.Contains(e.ID) {
		return fmt.Errorf("ledger: id %s already applied", e.ID)
	}

	l.entries = append(l.entries, e)
	l.ids[e.ID] = struct{}{}

	if err := l.save(); err != nil {
		// Roll back the in-memory append so the ledger stays consistent
		// with disk.
		l.entries = l.entries[:len(l.entries)-1]
		delete(l.ids, e.ID)
		return err
	}
	return nil
}

// save writes the whole document with tmp file → fsync → rename, the
// same discipline as store writes, so concurrent readers never see a
// torn ledger.
func (l *Ledger) save() error {
	doc := document{SchemaVersion: SchemaVersion, Applied: l.entries}
	if doc.Applied == nil {
		doc.Applied = []Entry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ledger: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".raido-ledger-*")
	if err != nil {
		return fmt.Errorf("ledger: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("ledger: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("ledger: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ledger: close temp: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("ledger: rename: %w", err)
	}
	success = true
	return nil
}
