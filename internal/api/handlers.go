package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/pimstore/internal/entryservice"
	"github.com/starford/pimstore/internal/link"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *entryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *entryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// entryPath extracts the entry ID from the wildcard part of the URL.
// Supports encoded slashes from OpenAPI clients (e.g. notes%2Fhello).
func entryPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries with optional pagination and filtering
//	@Tags			entries
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			prefix	query		string	false	"Filter by ID prefix"
//	@Param			sort	query		string	false	"Sort field"	Enums(id, title, updated, links)
//	@Success		200		{object}	EntryListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListEntries(r.Context(), limit, offset, q.Get("prefix"), q.Get("sort"))
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: total})
}

// GetEntry handles GET /api/entries/*.
//
//	@Summary		Get a single entry by ID
//	@Tags			entries
//	@Produce		json
//	@Param			path	path		string	true	"Entry ID"
//	@Success		200		{object}	EntryDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{path} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	e, err := h.svc.GetEntry(r.Context(), path)
	if err != nil {
		writeError(w, "get entry", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEntry handles POST /api/entries.
//
//	@Summary		Create a new entry, establishing the links its header declares
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntryRequest	true	"Entry to create"
//	@Success		201		{object}	EntryDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.svc.CreateEntry(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, "create entry", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// DeleteEntry handles DELETE /api/entries/*.
//
//	@Summary		Delete an entry and every link pointing at it
//	@Tags			entries
//	@Param			path	path	string	true	"Entry ID"
//	@Success		204		"Entry deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{path} [delete]
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteEntry(r.Context(), path); err != nil {
		writeError(w, "delete entry", err, slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Links handles GET /api/links/*.
//
//	@Summary		List the links stored in an entry
//	@Tags			links
//	@Produce		json
//	@Param			path	path		string	true	"Entry ID"
//	@Success		200		{object}	LinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{path} [get]
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	links, err := h.svc.Links(r.Context(), path)
	if err != nil {
		writeError(w, "get links", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{ID: path, Links: links})
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List indexed links pointing at an entry
//	@Tags			links
//	@Produce		json
//	@Param			path	path		string	true	"Entry ID"
//	@Success		200		{object}	LinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	links, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		writeError(w, "get backlinks", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{ID: path, Links: links})
}

// AddLink handles POST /api/links.
//
//	@Summary		Link two entries in both directions
//	@Tags			links
//	@Accept			json
//	@Param			body	body	LinkRequest	true	"Link to add"
//	@Success		204		"Linked"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [post]
func (h *Handler) AddLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Link(r.Context(), req.From, req.To, req.Annotation); err != nil {
		writeError(w, "add link", err, slog.String("from", req.From), slog.String("to", req.To))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveLink handles DELETE /api/links.
//
//	@Summary		Remove every link between two entries
//	@Tags			links
//	@Accept			json
//	@Param			body	body	LinkRequest	true	"Link to remove"
//	@Success		204		"Unlinked"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [delete]
func (h *Handler) RemoveLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Unlink(r.Context(), req.From, req.To); err != nil {
		writeError(w, "remove link", err, slog.String("from", req.From), slog.String("to", req.To))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Check handles GET /api/check.
//
//	@Summary		Verify that every link resolves and is mirrored
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	CheckResponse
//	@Failure		409	{object}	CheckResponse
//	@Security		BearerAuth
//	@Router			/check [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Check(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, CheckResponse{OK: true})
		return
	}
	var ce *link.ConsistencyError
	if !errors.As(err, &ce) {
		writeError(w, "check", err)
		return
	}
	resp := CheckResponse{Error: ce.Kind.Error(), OneDirectional: ce.OneDirectional}
	for _, id := range ce.DeadLinks {
		resp.DeadLinks = append(resp.DeadLinks, id.String())
	}
	writeJSON(w, http.StatusConflict, resp)
}

// GC handles POST /api/gc.
//
//	@Summary		Delete entries without links
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GCRequest	false	"Scope and mode"
//	@Success		200		{object}	GCResponse
//	@Security		BearerAuth
//	@Router			/gc [post]
func (h *Handler) GC(w http.ResponseWriter, r *http.Request) {
	var req GCRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	deleted, err := h.svc.GC(r.Context(), req.Dir, req.DryRun)
	if err != nil {
		writeError(w, "gc", err, slog.String("dir", req.Dir))
		return
	}
	writeJSON(w, http.StatusOK, GCResponse{DryRun: req.DryRun, Deleted: deleted})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}
