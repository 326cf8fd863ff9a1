package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/pimstore/internal/entryservice"
	"github.com/starford/pimstore/internal/index"
	"github.com/starford/pimstore/internal/link"
	"github.com/starford/pimstore/internal/models"
)

// CreateEntryRequest is the request body for creating an entry.
type CreateEntryRequest struct {
	Path    string `json:"path" example:"notes/hello" validate:"required"`
	Content string `json:"content" example:"---\npim:\n  links:\n  - notes/world\n---\nHello"`
}

// Validate implements validation.Validatable.
func (r CreateEntryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// LinkRequest is the request body for adding or removing a link.
type LinkRequest struct {
	From       string `json:"from" example:"notes/hello" validate:"required"`
	To         string `json:"to" example:"notes/world" validate:"required"`
	Annotation string `json:"annotation,omitempty" example:"see also"`
}

// Validate implements validation.Validatable.
func (r LinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required, validation.NotIn(r.From).Error("must differ from from")),
	)
}

// GCRequest is the request body for garbage collection.
type GCRequest struct {
	Dir    string `json:"dir" example:"calendar"`
	DryRun bool   `json:"dry_run"`
}

// EntryDetail is the full entry response type (aliased from the domain layer).
type EntryDetail = entryservice.EntryDetail

// EntryListItem is a lightweight item in a list response (aliased from the domain layer).
type EntryListItem = entryservice.EntryListItem

// EntryListResponse wraps paginated entry listings.
type EntryListResponse struct {
	Entries []EntryListItem `json:"entries" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}

// LinksResponse wraps the links of one entry.
type LinksResponse struct {
	ID    string        `json:"id" example:"notes/hello" validate:"required"`
	Links []models.Edge `json:"links" validate:"required"`
}

// CheckResponse reports the outcome of a consistency check.
type CheckResponse struct {
	OK             bool                  `json:"ok"`
	Error          string                `json:"error,omitempty"`
	DeadLinks      []string              `json:"dead_links,omitempty"`
	OneDirectional []link.OneDirectional `json:"one_directional,omitempty"`
}

// GCResponse lists entries removed (or, in a dry run, removable) by GC.
type GCResponse struct {
	DryRun  bool     `json:"dry_run"`
	Deleted []string `json:"deleted" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []models.Edge     `json:"links" validate:"required"`
}
