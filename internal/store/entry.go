// Package store keeps entries as Markdown files with a YAML header on top
// of a storage.Provider.
package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/starford/pimstore/internal/header"
	"github.com/starford/pimstore/internal/parser"
	"github.com/starford/pimstore/internal/storeid"
)

// ErrDecode is returned for content that is not a valid entry file.
var ErrDecode = errors.New("store: decode")

// Entry is one stored item: a location, a structured header and a body.
type Entry struct {
	id     storeid.ID
	header *header.Header
	body   string
}

// NewEntry returns an empty entry at id.
func NewEntry(id storeid.ID) *Entry {
	return &Entry{id: id, header: header.New()}
}

// Location returns the entry's identifier.
func (e *Entry) Location() storeid.ID { return e.id }

// Header returns the mutable header of the entry.
func (e *Entry) Header() *header.Header { return e.header }

// SetHeader replaces the header.
func (e *Entry) SetHeader(h *header.Header) { e.header = h }

// Body returns the free-form content.
func (e *Entry) Body() string { return e.body }

// SetBody replaces the free-form content.
func (e *Entry) SetBody(body string) { e.body = body }

// Encode renders the entry as file content. An empty header is omitted.
func (e *Entry) Encode() ([]byte, error) {
	hdr, err := e.header.Marshal()
	if err != nil {
		return nil, fmt.Errorf("store: encode header of %s: %w", e.id, err)
	}
	if len(hdr) == 0 {
		return []byte(e.body), nil
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(hdr)
	buf.WriteString("---\n")
	buf.WriteString(e.body)
	return buf.Bytes(), nil
}

// Decode parses file content into an entry at id.
func Decode(id storeid.ID, data []byte) (*Entry, error) {
	block, body, err := parser.Split(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, id, err)
	}
	h := header.New()
	if len(bytes.TrimSpace(block)) > 0 {
		h, err = header.Unmarshal(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, id, err)
		}
	}
	return &Entry{id: id, header: h, body: body}, nil
}
