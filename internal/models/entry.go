// Package models defines the shared domain types for pimstore.
package models

import "time"

// EntryMetadata is a lightweight description of one entry file returned by
// list operations.
type EntryMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge is one stored link from Source to Target, as kept in the index and
// reported by the graph endpoints.
type Edge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Annotation string `json:"annotation,omitempty"`
	Annotated  bool   `json:"annotated,omitempty"`
}
