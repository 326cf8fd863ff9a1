// Package link maintains bidirectional links between store entries.
//
// Links live in the "pim.links" header field of each entry. Every mutation
// goes through a Linker, which writes both sides of a relation one entry at
// a time. The writes are not transactional: a failure between them leaves
// the pair one-directional until Check reports it.
package link

import (
	"cmp"

	"github.com/starford/pimstore/internal/header"
	"github.com/starford/pimstore/internal/storeid"
)

// Entry is anything that has a location and a mutable header.
type Entry interface {
	Location() storeid.ID
	Header() *header.Header
}

// Link is a reference to another entry, optionally annotated. The zero value
// is not a valid link.
type Link struct {
	target     storeid.ID
	annotation string
	annotated  bool
}

// Plain returns an unannotated link to target.
func Plain(target storeid.ID) Link {
	return Link{target: target}
}

// Annotated returns a link to target carrying annotation.
func Annotated(target storeid.ID, annotation string) Link {
	return Link{target: target, annotation: annotation, annotated: true}
}

// Target returns the linked entry.
func (l Link) Target() storeid.ID { return l.target }

// Annotation returns the annotation and whether l is annotated.
func (l Link) Annotation() (string, bool) { return l.annotation, l.annotated }

// IsAnnotated reports whether l carries an annotation.
func (l Link) IsAnnotated() bool { return l.annotated }

// WithoutBase returns l with the store root stripped from its target.
func (l Link) WithoutBase() Link {
	l.target = l.target.WithoutBase()
	return l
}

// Refers reports whether l points at id, ignoring the store root.
func (l Link) Refers(id storeid.ID) bool {
	return l.target.Equal(id)
}

// Equal reports link equality. A plain and an annotated link to the same
// target are never equal.
func (l Link) Equal(o Link) bool {
	return Compare(l, o) == 0
}

// Compare orders links by target, then plain before annotated, then by
// annotation text.
func Compare(a, b Link) int {
	if c := storeid.Compare(a.target, b.target); c != 0 {
		return c
	}
	if a.annotated != b.annotated {
		if a.annotated {
			return 1
		}
		return -1
	}
	return cmp.Compare(a.annotation, b.annotation)
}

func (l Link) String() string {
	if !l.annotated {
		return l.target.String()
	}
	return l.target.String() + " (" + l.annotation + ")"
}
