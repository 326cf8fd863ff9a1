// Package storeid defines identifiers for entries in the store.
package storeid

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidID is returned when a value cannot be parsed into an ID.
var ErrInvalidID = errors.New("invalid store id")

// Ext is the file extension of an entry on disk. IDs never carry it.
const Ext = ".md"

// ID names one entry by its store-relative path. It may carry the absolute
// store root ("based") or not ("baseless"); the base never takes part in
// comparisons, so map keys must use WithoutBase.
type ID struct {
	base string
	rel  string
}

// New parses p into an ID rooted at base. An absolute p must lie under base
// and is made relative to it.
func New(base, p string) (ID, error) {
	if base != "" && filepath.IsAbs(p) {
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return ID{}, fmt.Errorf("%w: %s: %v", ErrInvalidID, p, err)
		}
		p = rel
	}
	rel, err := clean(p)
	if err != nil {
		return ID{}, err
	}
	return ID{base: base, rel: rel}, nil
}

// NewBaseless parses p into an ID without a store root.
func NewBaseless(p string) (ID, error) {
	return New("", p)
}

// MustBaseless is like NewBaseless but panics on error. Intended for tests
// and constants.
func MustBaseless(p string) ID {
	id, err := NewBaseless(p)
	if err != nil {
		panic(err)
	}
	return id
}

func clean(p string) (string, error) {
	s := filepath.ToSlash(strings.TrimSpace(p))
	s = strings.TrimSuffix(s, Ext)
	if s == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidID)
	}
	if strings.HasPrefix(s, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidID, p)
	}
	s = path.Clean(s)
	if s == "." || s == ".." || strings.HasPrefix(s, "../") {
		return "", fmt.Errorf("%w: path escapes store root: %q", ErrInvalidID, p)
	}
	return s, nil
}

// WithBase returns a copy of id rooted at base.
func (id ID) WithBase(base string) ID {
	id.base = base
	return id
}

// WithoutBase returns a copy of id with the store root stripped.
func (id ID) WithoutBase() ID {
	id.base = ""
	return id
}

// Base returns the store root, or "" for a baseless ID.
func (id ID) Base() string { return id.base }

// HasBase reports whether id carries a store root.
func (id ID) HasBase() bool { return id.base != "" }

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id.rel == "" }

// String returns the canonical baseless form.
func (id ID) String() string { return id.rel }

// MarshalText renders the baseless form.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.rel), nil }

// UnmarshalText parses a baseless ID.
func (id *ID) UnmarshalText(b []byte) error {
	v, err := NewBaseless(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Path returns the physical file location of the entry.
func (id ID) Path() (string, error) {
	if id.base == "" {
		return "", fmt.Errorf("storeid: %s has no base", id.rel)
	}
	return filepath.Join(id.base, filepath.FromSlash(id.rel)+Ext), nil
}

// Equal reports whether id and other name the same entry.
func (id ID) Equal(other ID) bool { return id.rel == other.rel }

// Compare orders IDs by their canonical path.
func Compare(a, b ID) int { return strings.Compare(a.rel, b.rel) }

// HasPrefix reports whether id lies within the collection dir.
func (id ID) HasPrefix(dir string) bool {
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	if dir == "" {
		return true
	}
	return id.rel == dir || strings.HasPrefix(id.rel, dir+"/")
}

// ObjectKind distinguishes entries from collections in a store walk.
type ObjectKind int

const (
	// KindEntry is a stored entry.
	KindEntry ObjectKind = iota
	// KindCollection is a directory grouping entries.
	KindCollection
)

func (k ObjectKind) String() string {
	if k == KindCollection {
		return "collection"
	}
	return "entry"
}

// Object is one item observed while walking the store.
type Object struct {
	Kind ObjectKind
	ID   ID
}
