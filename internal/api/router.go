package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/pimstore/internal/entryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *entryservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entries.
	r.Get("/entries", h.ListEntries)
	r.Post("/entries", h.CreateEntry)
	r.Get("/entries/*", h.GetEntry)
	r.Delete("/entries/*", h.DeleteEntry)

	// Links.
	r.Get("/links/*", h.Links)
	r.Post("/links", h.AddLink)
	r.Delete("/links", h.RemoveLink)
	r.Get("/backlinks/*", h.Backlinks)

	// Maintenance.
	r.Get("/check", h.Check)
	r.Post("/gc", h.GC)

	r.Get("/graph", h.Graph)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
