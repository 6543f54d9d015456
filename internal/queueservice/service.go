// Package queueservice coordinates stores, ledger, index, and router for
// the update queue: discovery, idempotent application, skipping, and
// publishing of update records.
package queueservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/affinity"
	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/ledger"
	"github.com/starford/raido/internal/router"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/update"
)

// ApplyFunc performs the file changes an update record describes. The
// record body is free text interpreted by the consuming agent, so the
// actual work happens outside raido; a nil hook makes application a
// bookkeeping-only operation.
type ApplyFunc func(ctx context.Context, rec *update.Record) error

// NotifyFunc is called after a committed queue state change. kind is
// currently only "applied"; file-level created/updated/deleted events
// come from the store watcher instead.
type NotifyFunc func(kind string, rec *update.Record)

// Options configures a Service.
type Options struct {
	Sources       router.Sources
	Rules         affinity.Registry
	ProjectConfig map[string]any
	LedgerPath    string
	Index         index.QueueIndex // optional
	Role          string
	Policy        string
	Apply         ApplyFunc  // optional
	Notify        NotifyFunc // optional
	Logger        *slog.Logger
}

// Service is the update queue application layer.
type Service struct {
	sources router.Sources
	router  *router.Router
	ledger  string
	db      index.QueueIndex
	role    string
	policy  string
	applyFn ApplyFunc
	notify  NotifyFunc
	logger  *slog.Logger
}

// New creates a Service from opts.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sources: opts.Sources,
		router:  router.New(opts.Sources, opts.Rules, opts.ProjectConfig, logger),
		ledger:  opts.LedgerPath,
		db:      opts.Index,
		role:    opts.Role,
		policy:  opts.Policy,
		applyFn: opts.Apply,
		notify:  opts.Notify,
		logger:  logger,
	}
}

// Pending is one discovered record plus its classification.
type Pending struct {
	Record     *update.Record
	Scope      router.Scope
	Authorized bool
}

// Discover returns all pending records for the project, classified and
// checked against the authorization policy. The ledger is re-read on
// every call so overlapping sessions see each other's commits.
func (s *Service) Discover(_ context.Context) ([]Pending, error) {
	led, err := ledger.Load(s.ledger)
	if err != nil {
		return nil, err
	}
	recs, err := s.router.Discover(led)
	if err != nil {
		return nil, err
	}
	out := make([]Pending, len(recs))
	for i, rec := range recs {
		scope := router.Classify(rec)
		out[i] = Pending{
			Record:     rec,
			Scope:      scope,
			Authorized: router.Authorized(s.policy, s.role, scope),
		}
	}
	return out, nil
}

// Get returns one pending record by id.
func (s *Service) Get(ctx context.Context, id string) (*Pending, error) {
	pending, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pending {
		if pending[i].Record.ID == id {
			return &pending[i], nil
		}
	}
	return nil, apperr.ErrNotFound
}

// Apply applies the record with the given id: run the hook, append the
// ledger, and delete the file for file-backed origins. Registry records
// are shared broadcasts and stay on disk; the ledger entry alone marks
// completion. A record the current role may not act on under the
// configured policy yields apperr.ErrRedirect with no side effects.
func (s *Service) Apply(ctx context.Context, id string) (*ledger.Entry, error) {
	led, err := ledger.Load(s.ledger)
	if err != nil {
		return nil, err
	}
	if led.Contains(id) {
		return nil, apperr.ErrAlreadyApplied
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := p.Record
	if !p.Authorized {
		s.logger.Info("apply: redirect required",
			slog.String("id", id),
			slog.String("role", s.role),
			slog.String("scope", p.Scope.Value))
		return nil, apperr.ErrRedirect
	}

	if s.applyFn != nil {
		if err := s.applyFn(ctx, rec); err != nil {
			return nil, fmt.Errorf("apply %s: %w", id, err)
		}
	}

	entry := ledger.Entry{
		ID:         rec.ID,
		AppliedAt:  time.Now().UTC(),
		AppliedBy:  s.role,
		UpdateType: rec.Meta.EffectiveType(),
	}
	if err := led.Append(entry); err != nil {
		return nil, err
	}

	if rec.Origin.FileBacked() {
		if err := s.deleteAndVerify(ctx, rec); err != nil {
			return nil, err
		}
	}

	if s.notify != nil {
		s.notify("applied", rec)
	}

	s.logger.Info("apply: committed",
		slog.String("id", rec.ID),
		slog.String("origin", string(rec.Origin)),
		slog.String("type", entry.UpdateType))
	return &entry, nil
}

// deleteAndVerify removes a file-backed record from its store and
// re-runs discovery to assert the id is gone. This is a correctness
// check against double-processing, not an optimization.
func (s *Service) deleteAndVerify(ctx context.Context, rec *update.Record) error {
	p := s.providerFor(rec.Origin)
	if p == nil {
		return fmt.Errorf("apply %s: no store for origin %s", rec.ID, rec.Origin)
	}
	if err := p.Delete(rec.Path); err != nil {
		return fmt.Errorf("apply %s: delete record: %w", rec.ID, err)
	}
	if s.db != nil {
		if err := s.db.DeleteRecord(string(rec.Origin), rec.Path); err != nil {
			s.logger.Warn("apply: index cleanup failed",
				slog.String("id", rec.ID), slog.String("error", err.Error()))
		}
	}

	pending, err := s.Discover(ctx)
	if err != nil {
		return fmt.Errorf("apply %s: verification discovery: %w", rec.ID, err)
	}
	for _, p := range pending {
		if p.Record.ID == rec.ID {
			return fmt.Errorf("apply %s: record still discoverable after delete", rec.ID)
		}
	}
	return nil
}

// Skip records an explicit operator deferral. The record and ledger are
// left untouched so the record resurfaces on the next discovery pass.
func (s *Service) Skip(ctx context.Context, id string) (*Pending, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("skip: deferred",
		slog.String("id", id),
		slog.String("role", s.role))
	return p, nil
}

// Publish composes a new record and writes it to the project-local
// store under its canonical filename. The record is validated before
// anything touches disk.
func (s *Service) Publish(_ context.Context, meta update.Meta, title string, sections map[string]string) (*update.Record, error) {
	if s.sources.Project == nil {
		return nil, fmt.Errorf("publish: no project store configured")
	}
	if meta.Date == "" {
		meta.Date = time.Now().Format("2006-01-02")
	}
	if meta.Priority == "" {
		meta.Priority = update.PriorityNormal
	}

	slug := update.Slugify(title)
	if slug == "" {
		return nil, fmt.Errorf("publish: title %q yields an empty slug", title)
	}

	data, err := update.Compose(meta, title, sections)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s-%s.md", meta.Date, slug)
	rec, err := update.Parse(name, update.OriginProject, data)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.sources.Project.Read(name); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.sources.Project.Write(name, data); err != nil {
		return nil, err
	}
	if s.db != nil {
		if err := s.IndexRecord(rec); err != nil {
			s.logger.Warn("publish: index failed",
				slog.String("id", rec.ID), slog.String("error", err.Error()))
		}
	}

	s.logger.Info("publish: created",
		slog.String("id", rec.ID),
		slog.String("path", rec.Path))
	return rec, nil
}

// Ledger returns the project's applied entries.
func (s *Service) Ledger(_ context.Context) ([]ledger.Entry, error) {
	led, err := ledger.Load(s.ledger)
	if err != nil {
		return nil, err
	}
	return led.Entries(), nil
}

// Records lists rows straight from the index, unfiltered by ledger or
// affinity. This is the operator's raw view; Discover remains the
// authoritative pending set.
func (s *Service) Records(_ context.Context, f index.Filter) ([]index.RecordRow, int, error) {
	if s.db == nil {
		return nil, 0, fmt.Errorf("records: no index configured")
	}
	return s.db.ListRecords(f)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("search: no index configured")
	}
	return s.db.Search(query, limit)
}

// IndexRecord upserts one parsed record into the index.
func (s *Service) IndexRecord(rec *update.Record) error {
	if s.db == nil {
		return nil
	}
	scope := router.Classify(rec)
	return s.db.UpsertRecord(index.RecordRow{
		Origin:        string(rec.Origin),
		Path:          rec.Path,
		ID:            rec.ID,
		Title:         rec.Title,
		Priority:      rec.Meta.Priority,
		Scope:         scope.Value,
		ScopeInferred: scope.Inferred,
		UpdateType:    rec.Meta.EffectiveType(),
		Checksum:      rec.Checksum,
		IndexedAt:     time.Now(),
	}, rec.Body)
}

// providerFor maps an origin back to its store.
func (s *Service) providerFor(origin update.Origin) store.Provider {
	switch origin {
	case update.OriginProject:
		return s.sources.Project
	case update.OriginRegistry:
		return s.sources.Registry
	case update.OriginLegacy:
		return s.sources.Legacy
	default:
		return nil
	}
}
