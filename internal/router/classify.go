package router

import (
	"strings"

	"github.com/starford/raido/internal/update"
)

// Scope is the classification of a record. Inferred distinguishes a
// heuristic result from explicit frontmatter so consumers can treat
// them with different confidence.
type Scope struct {
	Value    string
	Inferred bool
}

// Agent roles that consume updates.
const (
	RolePlanner = "planner"
	RoleBuilder = "builder"
)

// Scope enforcement policies. The advisory default lets either role
// apply any scope; strict restricts planning records to the planner and
// implementation records to the builder (mixed stays open to both).
const (
	PolicyAdvisory = "advisory"
	PolicyStrict   = "strict"
)

// Classify returns the record's scope. Explicit frontmatter is trusted;
// otherwise the scope is inferred from the paths in "Files affected".
func Classify(rec *update.Record) Scope {
	if s := rec.Meta.Scope; s != "" {
		return Scope{Value: s}
	}

	var planning, implementation bool
	for _, p := range rec.FilesAffected() {
		if isPlanningPath(p) {
			planning = true
		} else {
			implementation = true
		}
	}

	switch {
	case planning && implementation:
		return Scope{Value: update.ScopeMixed, Inferred: true}
	case planning:
		return Scope{Value: update.ScopePlanning, Inferred: true}
	case implementation:
		return Scope{Value: update.ScopeImplementation, Inferred: true}
	default:
		// Nothing listed: assume the widest scope.
		return Scope{Value: update.ScopeMixed, Inferred: true}
	}
}

// planningPrefixes mark documentation, planning, and registry trees.
var planningPrefixes = []string{
	"docs/",
	"planning/",
	"prompts/",
	".claude/",
}

// isPlanningPath reports whether p belongs to the planning domain:
// documentation trees, planning registries, or markdown documents.
// Everything else (source, tests, config, runtime assets) is
// implementation territory.
func isPlanningPath(p string) bool {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
	for _, prefix := range planningPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	base := p[strings.LastIndex(p, "/")+1:]
	if strings.Contains(base, "registry") || strings.Contains(base, "-state") {
		return true
	}
	return strings.HasSuffix(p, ".md")
}

// Authorized reports whether role may apply a record of the given scope
// under policy. Unknown policies behave like strict: never widen
// authority on a misconfiguration.
func Authorized(policy, role string, scope Scope) bool {
	if policy == PolicyAdvisory {
		return true
	}
	switch scope.Value {
	case update.ScopePlanning:
		return role == RolePlanner
	case update.ScopeImplementation:
		return role == RoleBuilder
	case update.ScopeMixed:
		return role == RolePlanner || role == RoleBuilder
	default:
		return false
	}
}
