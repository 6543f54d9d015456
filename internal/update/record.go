// Package update defines the update record format: a Markdown document
// with YAML frontmatter describing one requested change.
package update

import (
	"fmt"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Priority levels for an update record.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Scope values. Scope is optional in the frontmatter; when absent it is
// inferred from the "Files affected" section.
const (
	ScopePlanning       = "planning"
	ScopeImplementation = "implementation"
	ScopeMixed          = "mixed"
)

// Origin identifies which store a record was discovered in.
type Origin string

// Store origins, in discovery priority order.
const (
	OriginProject  Origin = "project"
	OriginRegistry Origin = "registry"
	OriginLegacy   Origin = "legacy"
)

// FileBacked reports whether records from this origin are deleted after
// application. Registry records are shared broadcasts and are never
// deleted; completion is tracked in the ledger only.
func (o Origin) FileBacked() bool {
	return o == OriginProject || o == OriginLegacy
}

// Meta is the YAML frontmatter of an update record.
type Meta struct {
	CreatedBy string `yaml:"createdBy"`
	Date      string `yaml:"date"`
	Priority  string `yaml:"priority"`
	Type      string `yaml:"type,omitempty"`
	// UpdateType is an accepted alias for Type seen in older records.
	UpdateType string `yaml:"updateType,omitempty"`
	Scope      string `yaml:"scope,omitempty"`
	// Affinity names the rule that decides which projects a
	// registry-sourced record applies to. Ignored for file-backed stores.
	Affinity string `yaml:"affinity,omitempty"`
}

// Validate checks the frontmatter fields.
func (m Meta) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.CreatedBy, validation.Required),
		validation.Field(&m.Date, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&m.Priority, validation.Required,
			validation.In(PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent)),
		validation.Field(&m.Scope,
			validation.In(ScopePlanning, ScopeImplementation, ScopeMixed)),
	)
}

// EffectiveType returns Type, falling back to the UpdateType alias and
// then to "general" so ledger entries always carry a type.
func (m Meta) EffectiveType() string {
	if m.Type != "" {
		return m.Type
	}
	if m.UpdateType != "" {
		return m.UpdateType
	}
	return "general"
}

// SectionNames lists the four required body sections, in canonical order.
var SectionNames = []string{"What to do", "Files affected", "Why", "Verification"}

// Record is a parsed update record.
type Record struct {
	// ID is derived from the filename: date plus slug, without extension.
	ID       string
	Path     string
	Origin   Origin
	Meta     Meta
	Title    string
	Body     string
	Sections map[string]string
	Checksum string
}

// FilesAffected returns the paths listed as bullets in the
// "Files affected" section.
func (r *Record) FilesAffected() []string {
	var out []string
	for _, line := range strings.Split(r.Sections["Files affected"], "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
			continue
		}
		p := strings.TrimSpace(strings.TrimLeft(line, "-*"))
		p = strings.Trim(p, "`")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks frontmatter and required sections.
func (r *Record) Validate() error {
	if err := r.Meta.Validate(); err != nil {
		return err
	}
	for _, name := range SectionNames {
		if strings.TrimSpace(r.Sections[name]) == "" {
			return fmt.Errorf("update: missing required section %q", name)
		}
	}
	return nil
}

// IDFromPath derives the record id from its file path: the base name
// without the .md extension.
func IDFromPath(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, ".md")
}

// Filename returns the canonical file name for a record created on date
// with the given slug.
func Filename(date time.Time, slug string) string {
	return fmt.Sprintf("%s-%s.md", date.Format("2006-01-02"), Slugify(slug))
}

// Slugify lowercases s and replaces runs of non-alphanumeric characters
// with single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	prevHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
