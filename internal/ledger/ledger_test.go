package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func tempLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "applied-updates.json")
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return l
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	l := tempLedger(t)
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
	if l.Contains("anything") {
		t.Error("empty ledger should not contain ids")
	}
}

func TestAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	l, _ := Load(path)

	e := Entry{
		ID:         "2026-01-01-fix",
		AppliedAt:  time.Now().UTC(),
		AppliedBy:  "builder",
		UpdateType: "schema",
	}
	if err := l.Append(e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !l.Contains("2026-01-01-fix") {
		t.Error("Contains should report appended id")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("reloaded Len = %d, want 1", reloaded.Len())
	}
	got := reloaded.Entries()[0]
	if got.ID != e.ID || got.AppliedBy != e.AppliedBy || got.UpdateType != e.UpdateType {
		t.Errorf("entry = %+v", got)
	}
}

func TestAppend_DuplicateRejected(t *testing.T) {
	l := tempLedger(t)
	e := Entry{ID: "dup", AppliedAt: time.Now(), AppliedBy: "planner", UpdateType: "sync"}
	if err := l.Append(e); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := l.Append(e); err == nil {
		t.Fatal("second Append should fail")
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestAppend_EmptyID(t *testing.T) {
	l := tempLedger(t)
	if err := l.Append(Entry{AppliedAt: time.Now()}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	_ = os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for corrupt ledger")
	}
}

func TestLoad_DeduplicatesOnRead(t *testing.T) {
	// A hand-edited ledger with a duplicated id keeps only the first entry.
	path := filepath.Join(t.TempDir(), "ledger.json")
	doc := `{"schemaVersion":1,"applied":[
		{"id":"a","appliedAt":"2026-01-01T00:00:00Z","appliedBy":"x","updateType":"t"},
		{"id":"a","appliedAt":"2026-01-02T00:00:00Z","appliedBy":"y","updateType":"t"}
	]}`
	_ = os.WriteFile(path, []byte(doc), 0o644)
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
	if l.Entries()[0].AppliedBy != "x" {
		t.Errorf("first entry should win, got %+v", l.Entries()[0])
	}
}

func TestSave_WritesSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	l, _ := Load(path)
	_ = l.Append(Entry{ID: "v", AppliedAt: time.Now(), AppliedBy: "b", UpdateType: "t"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"schemaVersion": 1`) {
		t.Errorf("missing schemaVersion in %s", data)
	}
}
