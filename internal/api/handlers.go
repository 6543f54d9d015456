package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/ledger"
	"github.com/starford/raido/internal/queueservice"
	"github.com/starford/raido/internal/update"
)

// Handler holds API route handlers.
type Handler struct {
	svc *queueservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *queueservice.Service) *Handler {
	return &Handler{svc: svc}
}

func toPending(p queueservice.Pending) PendingUpdate {
	return PendingUpdate{
		ID:            p.Record.ID,
		Origin:        string(p.Record.Origin),
		Path:          p.Record.Path,
		Title:         p.Record.Title,
		CreatedBy:     p.Record.Meta.CreatedBy,
		Date:          p.Record.Meta.Date,
		Priority:      p.Record.Meta.Priority,
		Type:          p.Record.Meta.EffectiveType(),
		Scope:         p.Scope.Value,
		ScopeInferred: p.Scope.Inferred,
		Authorized:    p.Authorized,
	}
}

// ListPending handles GET /updates: one discovery pass over all stores,
// optionally narrowed by ?origin= and ?priority=.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.Discover(r.Context())
	if err != nil {
		slog.Error("list pending failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	origin := r.URL.Query().Get("origin")
	priority := r.URL.Query().Get("priority")
	items := make([]PendingUpdate, 0, len(pending))
	for _, p := range pending {
		if origin != "" && string(p.Record.Origin) != origin {
			continue
		}
		if priority != "" && p.Record.Meta.Priority != priority {
			continue
		}
		items = append(items, toPending(p))
	}
	writeJSON(w, http.StatusOK, PendingListResponse{Updates: items, Total: len(items)})
}

// GetUpdate handles GET /updates/{id}.
func (h *Handler) GetUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get update failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, UpdateDetail{
		PendingUpdate: toPending(*p),
		Body:          p.Record.Body,
		Sections:      p.Record.Sections,
		Checksum:      p.Record.Checksum,
	})
}

// Publish handles POST /updates.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == "" || req.CreatedBy == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title and createdBy are required"))
		return
	}

	meta := update.Meta{
		CreatedBy: req.CreatedBy,
		Date:      req.Date,
		Priority:  req.Priority,
		Type:      req.Type,
		Scope:     req.Scope,
	}
	sections := map[string]string{
		"What to do":     req.WhatToDo,
		"Files affected": req.FilesAffected,
		"Why":            req.Why,
		"Verification":   req.Verification,
	}
	rec, err := h.svc.Publish(r.Context(), meta, req.Title, sections)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("update already exists"))
		default:
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":   rec.ID,
		"path": rec.Path,
	})
}

// Apply handles POST /updates/{id}/apply.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.svc.Apply(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrAlreadyApplied):
			writeJSON(w, http.StatusConflict, errorBody("already applied"))
		case errors.Is(err, apperr.ErrRedirect):
			writeJSON(w, http.StatusForbidden, errorBody("redirect required: current role may not apply this scope"))
		default:
			slog.Error("apply failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, AppliedResponse{
		ID:         entry.ID,
		AppliedAt:  entry.AppliedAt,
		AppliedBy:  entry.AppliedBy,
		UpdateType: entry.UpdateType,
	})
}

// Skip handles POST /updates/{id}/skip.
func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.svc.Skip(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("skip failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, toPending(*p))
}

// ListRecords handles GET /records: the raw index view, paginated and
// optionally narrowed by ?origin= and ?priority=. Unlike GET /updates
// it includes ledgered and affinity-excluded records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	rows, total, err := h.svc.Records(r.Context(), index.Filter{
		Origin:   q.Get("origin"),
		Priority: q.Get("priority"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		slog.Error("list records failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	resp := RecordListResponse{Records: []IndexedRecord{}, Total: total}
	for _, row := range rows {
		resp.Records = append(resp.Records, IndexedRecord{
			ID:            row.ID,
			Origin:        row.Origin,
			Path:          row.Path,
			Title:         row.Title,
			Priority:      row.Priority,
			Scope:         row.Scope,
			ScopeInferred: row.ScopeInferred,
			UpdateType:    row.UpdateType,
			Checksum:      row.Checksum,
			IndexedAt:     row.IndexedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ledger handles GET /ledger.
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Ledger(r.Context())
	if err != nil {
		slog.Error("ledger failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	resp := LedgerResponse{SchemaVersion: ledger.SchemaVersion, Applied: []AppliedResponse{}}
	for _, e := range entries {
		resp.Applied = append(resp.Applied, AppliedResponse{
			ID: e.ID, AppliedAt: e.AppliedAt, AppliedBy: e.AppliedBy, UpdateType: e.UpdateType,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	resp := SearchResponse{Results: []SearchHit{}}
	for _, res := range results {
		resp.Results = append(resp.Results, SearchHit{
			ID: res.ID, Origin: res.Origin, Path: res.Path, Title: res.Title, Snippet: res.Snippet,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
