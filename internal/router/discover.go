// Package router discovers pending update records across stores, matches
// them to the current project, and decides which agent role may act.
package router

import (
	"log/slog"

	"github.com/starford/raido/internal/affinity"
	"github.com/starford/raido/internal/ledger"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/update"
)

// Sources holds the three update stores in discovery priority order.
// A nil provider means the store does not exist on this machine and
// contributes zero records.
type Sources struct {
	Project  store.Provider // version-controlled with the project
	Registry store.Provider // shared broadcast store, never deleted from
	Legacy   store.Provider // local-machine only, not version-controlled
}

// forEach yields each non-nil source in priority order.
func (s Sources) forEach(fn func(origin update.Origin, p store.Provider) error) error {
	type src struct {
		origin update.Origin
		p      store.Provider
	}
	for _, e := range []src{
		{update.OriginProject, s.Project},
		{update.OriginRegistry, s.Registry},
		{update.OriginLegacy, s.Legacy},
	} {
		if e.p == nil {
			continue
		}
		if err := fn(e.origin, e.p); err != nil {
			return err
		}
	}
	return nil
}

// Router filters candidate records for one project.
type Router struct {
	sources Sources
	rules   affinity.Registry
	cfg     map[string]any
	logger  *slog.Logger
}

// New creates a Router over the given sources. rules and cfg drive
// affinity matching for registry-sourced records.
func New(sources Sources, rules affinity.Registry, cfg map[string]any, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sources: sources, rules: rules, cfg: cfg, logger: logger}
}

// Discover returns all pending records in source priority order:
// project-local first, then registry broadcasts that satisfy their
// affinity rule, then legacy. Records already in the ledger are
// excluded, as are registry records with no evaluable rule. When the
// same id appears in more than one store, the higher-priority source
// wins.
func (r *Router) Discover(led *ledger.Ledger) ([]*update.Record, error) {
	var out []*update.Record
	seen := make(map[string]struct{})

	err := r.sources.forEach(func(origin update.Origin, p store.Provider) error {
		infos, err := p.List("")
		if err != nil {
			return err
		}
		for _, info := range infos {
			data, err := p.Read(info.Path)
			if err != nil {
				r.logger.Warn("discover: read failed",
					slog.String("origin", string(origin)),
					slog.String("path", info.Path),
					slog.String("error", err.Error()))
				continue
			}
			rec, err := update.Parse(info.Path, origin, data)
			if err != nil {
				r.logger.Warn("discover: unparseable record skipped",
					slog.String("origin", string(origin)),
					slog.String("path", info.Path),
					slog.String("error", err.Error()))
				continue
			}

			if _, dup := seen[rec.ID]; dup {
				continue
			}
			if led != nil && led.Contains(rec.ID) {
				continue
			}
			if origin == update.OriginRegistry && !r.matchesProject(rec) {
				continue
			}

			seen[rec.ID] = struct{}{}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// matchesProject evaluates a registry record's affinity rule against the
// project configuration. A record with no rule name, or naming a rule
// absent from the registry, never matches.
func (r *Router) matchesProject(rec *update.Record) bool {
	name := rec.Meta.Affinity
	if name == "" {
		r.logger.Debug("discover: registry record without affinity rule excluded",
			slog.String("id", rec.ID))
		return false
	}
	rule, ok := r.rules[name]
	if !ok {
		r.logger.Warn("discover: unknown affinity rule",
			slog.String("id", rec.ID),
			slog.String("rule", name))
		return false
	}
	return affinity.Evaluate(rule, r.cfg)
}
