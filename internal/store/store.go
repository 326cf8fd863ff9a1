package store

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"

	"github.com/starford/pimstore/internal/apperr"
	"github.com/starford/pimstore/internal/storage"
	"github.com/starford/pimstore/internal/storeid"
)

// Store is a flat-file entry store. Single entry reads and writes are
// serialised; callers serialise multi-entry operations themselves.
type Store struct {
	fs storage.Provider
	mu sync.RWMutex
}

// New returns a store over p.
func New(p storage.Provider) *Store {
	return &Store{fs: p}
}

// Root returns the absolute store directory used as the base of every ID
// the store hands out.
func (s *Store) Root() string { return s.fs.Root() }

// ID parses p into an identifier rooted at this store.
func (s *Store) ID(p string) (storeid.ID, error) {
	return storeid.New(s.fs.Root(), p)
}

func relPath(id storeid.ID) string {
	return id.String() + storeid.Ext
}

// Create stores a new empty entry. It fails with apperr.ErrAlreadyExists when
// id is taken.
func (s *Store) Create(id storeid.ID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.fs.Exists(relPath(id))
	if err != nil {
		return nil, fmt.Errorf("store: create %s: %w", id, err)
	}
	if ok {
		return nil, fmt.Errorf("store: create %s: %w", id, apperr.ErrAlreadyExists)
	}
	e := NewEntry(id.WithBase(s.Root()))
	if err := s.write(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Retrieve returns the entry at id, creating it when absent.
func (s *Store) Retrieve(id storeid.ID) (*Entry, error) {
	e, err := s.Get(id)
	if errors.Is(err, apperr.ErrNotFound) {
		e, err = s.Create(id)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return s.Get(id)
		}
	}
	return e, err
}

// Get loads the entry at id. A missing entry yields apperr.ErrNotFound.
func (s *Store) Get(id storeid.ID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.fs.Read(relPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("store: %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return Decode(id.WithBase(s.Root()), data)
}

// Update persists e, replacing whatever is stored at its location.
func (s *Store) Update(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(e)
}

func (s *Store) write(e *Entry) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}
	if err := s.fs.Write(relPath(e.Location()), data); err != nil {
		return fmt.Errorf("store: update %s: %w", e.Location(), err)
	}
	return nil
}

// Delete removes the entry at id. A missing entry yields apperr.ErrNotFound.
func (s *Store) Delete(id storeid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Delete(relPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

// Exists reports whether the entry file is physically present.
func (s *Store) Exists(id storeid.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fs.Exists(relPath(id))
}

// Walk lists every entry and collection below dir, ordered by ID.
func (s *Store) Walk(dir string) ([]storeid.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.fs.List(dir)
	if err != nil {
		return nil, fmt.Errorf("store: walk %s: %w", dir, err)
	}
	dirs, err := s.fs.Dirs(dir)
	if err != nil {
		return nil, fmt.Errorf("store: walk %s: %w", dir, err)
	}

	out := make([]storeid.Object, 0, len(files)+len(dirs))
	for _, d := range dirs {
		id, err := s.ID(d)
		if err != nil {
			continue
		}
		out = append(out, storeid.Object{Kind: storeid.KindCollection, ID: id})
	}
	for _, f := range files {
		id, err := s.ID(f.Path)
		if err != nil {
			continue
		}
		out = append(out, storeid.Object{Kind: storeid.KindEntry, ID: id})
	}
	slices.SortFunc(out, func(a, b storeid.Object) int {
		return storeid.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Entries returns the IDs of every entry below dir, ordered.
func (s *Store) Entries(dir string) ([]storeid.ID, error) {
	objs, err := s.Walk(dir)
	if err != nil {
		return nil, err
	}
	var ids []storeid.ID
	for _, o := range objs {
		if o.Kind == storeid.KindEntry {
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}
