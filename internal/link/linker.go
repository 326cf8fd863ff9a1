package link

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/pimstore/internal/apperr"
	"github.com/starford/pimstore/internal/storeid"
)

// Getter loads entries by identifier. A missing entry must be reported with
// an error matching apperr.ErrNotFound.
type Getter[E Entry] interface {
	Get(id storeid.ID) (E, error)
}

// Store persists entries of type E.
type Store[E Entry] interface {
	Getter[E]
	Update(e E) error
	Delete(id storeid.ID) error
}

// Linker mutates link sets while keeping the back-reference invariant: A
// links to B iff B links to A. Each operation writes the far side first,
// then self, with one persist per entry. Entries passed in are borrowed for
// the call and updated in place.
type Linker[E Entry] struct {
	store  Store[E]
	logger *slog.Logger
}

// NewLinker returns a Linker persisting through s.
func NewLinker[E Entry](s Store[E], logger *slog.Logger) *Linker[E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker[E]{store: s, logger: logger}
}

// Add links self and other with plain links in both directions. Adding an
// existing link is a no-op.
func (l *Linker[E]) Add(self, other E) error {
	return l.add(self, other, Plain(other.Location()))
}

// AddAnnotated links self to other with an annotated link. The back-link
// from other to self stays plain.
func (l *Linker[E]) AddAnnotated(self, other E, annotation string) error {
	return l.add(self, other, Annotated(other.Location(), annotation))
}

func (l *Linker[E]) add(self, other E, forward Link) error {
	l.logger.Debug("adding link", "from", self.Location().String(), "to", forward.String())
	if err := l.backLink(other, self.Location()); err != nil {
		return err
	}
	cur, err := Links(self)
	if err != nil {
		return err
	}
	if _, err := setLinks(self, append(cur, forward)); err != nil {
		return err
	}
	return l.persist(self)
}

// backLink appends a plain link to from into target and persists target.
func (l *Linker[E]) backLink(target E, from storeid.ID) error {
	cur, err := Links(target)
	if err != nil {
		return err
	}
	if _, err := setLinks(target, append(cur, Plain(from))); err != nil {
		return err
	}
	return l.persist(target)
}

// Remove drops every link between self and other on both sides. Missing
// links are ignored.
func (l *Linker[E]) Remove(self, other E) error {
	l.logger.Debug("removing link", "from", self.Location().String(), "to", other.Location().String())
	if err := l.drop(other, self.Location()); err != nil {
		return err
	}
	return l.drop(self, other.Location())
}

func (l *Linker[E]) drop(e E, target storeid.ID) error {
	cur, err := Links(e)
	if err != nil {
		return err
	}
	kept := cur[:0]
	for _, lk := range cur {
		if !lk.Refers(target) {
			kept = append(kept, lk)
		}
	}
	if _, err := setLinks(e, kept); err != nil {
		return err
	}
	return l.persist(e)
}

// RemoveAll drops every link of self together with the back-links held by
// its peers. Peers missing from the store are skipped. It is the step to
// run before deleting self.
func (l *Linker[E]) RemoveAll(self E) error {
	cur, err := Links(self)
	if err != nil {
		return err
	}
	for _, lk := range Canonical(cur) {
		if lk.Refers(self.Location()) {
			continue
		}
		peer, err := l.store.Get(lk.Target())
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStoreRead, lk.Target(), err)
		}
		if err := l.drop(peer, self.Location()); err != nil {
			return err
		}
	}
	if _, err := setLinks(self, nil); err != nil {
		return err
	}
	l.logger.Debug("removed all links", "entry", self.Location().String(), "count", len(cur))
	return l.persist(self)
}

// Replace back-links self into every entry of others, in order, and then
// sets self's links to exactly others. It returns the previous set.
//
// A failure part way leaves the back-links already written in place.
// Targets dropped from self's set keep their back-link to self. When the
// previous field is malformed the new set is still written and the
// returned error wraps ErrMalformedLink.
func (l *Linker[E]) Replace(self E, others []E) ([]Link, error) {
	next := make([]Link, 0, len(others))
	for _, o := range others {
		if err := l.backLink(o, self.Location()); err != nil {
			return nil, err
		}
		next = append(next, Plain(o.Location()))
	}
	old, err := setLinks(self, next)
	if err != nil && !errors.Is(err, ErrMalformedLink) {
		return nil, err
	}
	if perr := l.persist(self); perr != nil {
		return nil, perr
	}
	if err != nil {
		l.logger.Warn("replaced malformed links", "entry", self.Location().String(), "error", err.Error())
		return nil, err
	}
	l.logger.Debug("replaced links", "entry", self.Location().String(), "old", len(old), "new", len(next))
	return old, nil
}

func (l *Linker[E]) persist(e E) error {
	if err := l.store.Update(e); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStoreWrite, e.Location(), err)
	}
	return nil
}
