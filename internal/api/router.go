package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/queueservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *queueservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Update queue.
	r.Get("/updates", h.ListPending)
	r.Post("/updates", h.Publish)
	r.Get("/updates/{id}", h.GetUpdate)
	r.Post("/updates/{id}/apply", h.Apply)
	r.Post("/updates/{id}/skip", h.Skip)

	// Raw index view.
	r.Get("/records", h.ListRecords)

	// Ledger.
	r.Get("/ledger", h.Ledger)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
