package update

import (
	"strings"
	"testing"
)

const sampleRecord = `---
createdBy: toolkit-maintainer
date: 2026-01-01
priority: normal
type: schema
---

# Fix registry schema

## What to do

1. Bump schemaVersion to 2.

## Files affected

- docs/prd-registry.json

## Why

The registry format changed.

## Verification

jq .schemaVersion docs/prd-registry.json prints 2.
`

func TestParse_FullRecord(t *testing.T) {
	r, err := Parse("updates/2026-01-01-fix.md", OriginProject, []byte(sampleRecord))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.ID != "2026-01-01-fix" {
		t.Errorf("id = %q, want %q", r.ID, "2026-01-01-fix")
	}
	if r.Title != "Fix registry schema" {
		t.Errorf("title = %q", r.Title)
	}
	if r.Meta.CreatedBy != "toolkit-maintainer" {
		t.Errorf("createdBy = %q", r.Meta.CreatedBy)
	}
	if r.Meta.Priority != PriorityNormal {
		t.Errorf("priority = %q", r.Meta.Priority)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	files := r.FilesAffected()
	if len(files) != 1 || files[0] != "docs/prd-registry.json" {
		t.Errorf("files = %v", files)
	}
}

func TestParse_MissingFrontmatter(t *testing.T) {
	if _, err := Parse("x.md", OriginProject, []byte("# No metadata\n")); err == nil {
		t.Fatal("expected error for record without frontmatter")
	}
}

func TestParse_UnterminatedFrontmatter(t *testing.T) {
	if _, err := Parse("x.md", OriginProject, []byte("---\ncreatedBy: a\n")); err == nil {
		t.Fatal("expected error for unterminated frontmatter")
	}
}

func TestValidate_MissingSection(t *testing.T) {
	content := strings.Replace(sampleRecord, "## Verification", "## Notes", 1)
	r, err := Parse("x.md", OriginProject, []byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.Validate(); err == nil {
		t.Error("expected validation error for missing Verification section")
	}
}

func TestValidate_BadPriority(t *testing.T) {
	content := strings.Replace(sampleRecord, "priority: normal", "priority: asap", 1)
	r, err := Parse("x.md", OriginProject, []byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := r.Validate(); err == nil {
		t.Error("expected validation error for unknown priority")
	}
}

func TestValidate_BadDate(t *testing.T) {
	content := strings.Replace(sampleRecord, "date: 2026-01-01", "date: January 1st", 1)
	r, _ := Parse("x.md", OriginProject, []byte(content))
	if err := r.Validate(); err == nil {
		t.Error("expected validation error for malformed date")
	}
}

func TestEffectiveType_Alias(t *testing.T) {
	m := Meta{UpdateType: "migration"}
	if got := m.EffectiveType(); got != "migration" {
		t.Errorf("EffectiveType = %q, want migration", got)
	}
	m = Meta{Type: "sync", UpdateType: "migration"}
	if got := m.EffectiveType(); got != "sync" {
		t.Errorf("EffectiveType = %q, want sync (type wins over alias)", got)
	}
	if got := (Meta{}).EffectiveType(); got != "general" {
		t.Errorf("EffectiveType = %q, want general default", got)
	}
}

func TestSplitSections(t *testing.T) {
	body := "# T\n\n## A\n\nfirst\n\n## B\n\nsecond\nline\n"
	sections := splitSections(body)
	if sections["A"] != "first" {
		t.Errorf("A = %q", sections["A"])
	}
	if sections["B"] != "second\nline" {
		t.Errorf("B = %q", sections["B"])
	}
}

func TestFilesAffected_BulletVariants(t *testing.T) {
	r := &Record{Sections: map[string]string{
		"Files affected": "- a.go\n* `b.md`\nnot a bullet\n-   c/d.json",
	}}
	files := r.FilesAffected()
	want := []string{"a.go", "b.md", "c/d.json"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestCompose_RoundTrip(t *testing.T) {
	meta := Meta{
		CreatedBy: "planner",
		Date:      "2026-02-03",
		Priority:  PriorityHigh,
		Type:      "migration",
	}
	sections := map[string]string{
		"What to do":     "Rename the field.",
		"Files affected": "- internal/config.go",
		"Why":            "Field name drifted.",
		"Verification":   "go build ./... succeeds.",
	}
	data, err := Compose(meta, "Rename config field", sections)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	r, err := Parse("2026-02-03-rename-config-field.md", OriginProject, data)
	if err != nil {
		t.Fatalf("Parse composed record: %v", err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate composed record: %v", err)
	}
	if r.Meta != meta {
		t.Errorf("meta = %+v, want %+v", r.Meta, meta)
	}
	if r.Sections["What to do"] != "Rename the field." {
		t.Errorf("section = %q", r.Sections["What to do"])
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Fix Registry Schema!", "fix-registry-schema"},
		{"  spaced   out  ", "spaced-out"},
		{"already-kebab", "already-kebab"},
		{"Ünïcode bits", "n-code-bits"},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIDFromPath(t *testing.T) {
	if got := IDFromPath("updates/2026-01-01-fix.md"); got != "2026-01-01-fix" {
		t.Errorf("id = %q", got)
	}
	if got := IDFromPath("2026-01-01-fix.md"); got != "2026-01-01-fix" {
		t.Errorf("id = %q", got)
	}
}
