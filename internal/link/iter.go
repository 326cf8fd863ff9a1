package link

import (
	"errors"
	"fmt"
	"iter"

	"github.com/starford/pimstore/internal/apperr"
)

// EntryIter is a lazy, single-pass sequence of entries reached through
// links. Stages are chained by the methods below and run only when the
// sequence is ranged over. Every stage stops at the first error.
type EntryIter[E Entry] struct {
	store Store[E]
	seq   iter.Seq2[E, error]
}

// Entries dereferences links through s. Targets the store reports as not
// found are skipped; any other read error is yielded and ends the sequence.
func Entries[E Entry](s Store[E], links []Link) *EntryIter[E] {
	seq := func(yield func(E, error) bool) {
		var zero E
		for _, lk := range links {
			e, err := s.Get(lk.Target())
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				yield(zero, fmt.Errorf("%w: %s: %w", ErrStoreRead, lk.Target(), err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
	return &EntryIter[E]{store: s, seq: seq}
}

// FilteredForLinks keeps entries whose link set satisfies pred.
func (it *EntryIter[E]) FilteredForLinks(pred func([]Link) bool) *EntryIter[E] {
	src := it.seq
	seq := func(yield func(E, error) bool) {
		var zero E
		for e, err := range src {
			if err != nil {
				yield(zero, err)
				return
			}
			links, err := Links(e)
			if err != nil {
				yield(zero, err)
				return
			}
			if !pred(links) {
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
	return &EntryIter[E]{store: it.store, seq: seq}
}

// WithoutUnlinked keeps entries with at least one link.
func (it *EntryIter[E]) WithoutUnlinked() *EntryIter[E] {
	return it.FilteredForLinks(func(links []Link) bool { return len(links) > 0 })
}

// WithLessThanNLinks keeps entries with fewer than n links.
func (it *EntryIter[E]) WithLessThanNLinks(n int) *EntryIter[E] {
	return it.FilteredForLinks(func(links []Link) bool { return len(links) < n })
}

// WithMoreThanNLinks keeps entries with more than n links.
func (it *EntryIter[E]) WithMoreThanNLinks(n int) *EntryIter[E] {
	return it.FilteredForLinks(func(links []Link) bool { return len(links) > n })
}

// DeleteUnlinked deletes every entry without links from the store as the
// sequence is consumed, and yields the others unchanged. This stage mutates
// the store; entries not yet reached when iteration stops are untouched.
func (it *EntryIter[E]) DeleteUnlinked() *EntryIter[E] {
	src := it.seq
	s := it.store
	seq := func(yield func(E, error) bool) {
		var zero E
		for e, err := range src {
			if err != nil {
				yield(zero, err)
				return
			}
			links, err := Links(e)
			if err != nil {
				yield(zero, err)
				return
			}
			if len(links) == 0 {
				if err := s.Delete(e.Location()); err != nil {
					yield(zero, fmt.Errorf("%w: delete %s: %w", ErrStoreWrite, e.Location(), err))
					return
				}
				continue
			}
			if !yield(e, nil) {
				return
			}
		}
	}
	return &EntryIter[E]{store: s, seq: seq}
}

// All returns the underlying sequence.
func (it *EntryIter[E]) All() iter.Seq2[E, error] {
	return it.seq
}

// Collect drains the sequence.
func (it *EntryIter[E]) Collect() ([]E, error) {
	var out []E
	for e, err := range it.seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
