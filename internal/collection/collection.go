// Package collection manages calendar collections: entries that reference a
// directory on disk and link to one calendar entry per file inside it.
//
// Collections live at calendar/collection/<hash> and calendars at
// calendar/<hash>, where hash is the checksum of the absolute path they
// reference.
package collection

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/starford/pimstore/internal/checksum"
	"github.com/starford/pimstore/internal/header"
	"github.com/starford/pimstore/internal/link"
	"github.com/starford/pimstore/internal/storage"
	"github.com/starford/pimstore/internal/store"
	"github.com/starford/pimstore/internal/storeid"
)

const (
	// Dir is the store directory holding collections.
	Dir = "calendar/collection"
	// CalendarDir is the store directory holding calendars.
	CalendarDir = "calendar"

	fieldPath = "ref.path"
	fieldName = "calendar.name"
)

var (
	// ErrNotDirectory is returned when a collection path is not a directory.
	ErrNotDirectory = errors.New("collection: not a directory")
	// ErrMissingField is returned for an entry lacking a collection field.
	ErrMissingField = errors.New("collection: missing header field")
)

// Store offers CRUD for calendar collections on top of the entry store.
type Store struct {
	store  *store.Store
	linker *link.Linker[*store.Entry]
	logger *slog.Logger
}

// New returns a collection store.
func New(s *store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{store: s, linker: link.NewLinker(s, logger), logger: logger}
}

// Hash returns the identifier hash of p, made absolute first.
func Hash(p string) (string, error) {
	_, sum, err := checksum.Path(p)
	return sum, err
}

func collectionID(hash string) (storeid.ID, error) {
	return storeid.NewBaseless(Dir + "/" + hash)
}

func calendarID(hash string) (storeid.ID, error) {
	return storeid.NewBaseless(CalendarDir + "/" + hash)
}

// Get returns the collection with hash. A missing collection yields
// apperr.ErrNotFound.
func (c *Store) Get(hash string) (*store.Entry, error) {
	id, err := collectionID(hash)
	if err != nil {
		return nil, err
	}
	return c.store.Get(id)
}

// Create stores a new collection for dir. It fails with
// apperr.ErrAlreadyExists when the directory already has one.
func (c *Store) Create(dir, name string) (*store.Entry, error) {
	abs, id, err := c.locate(dir)
	if err != nil {
		return nil, err
	}
	e, err := c.store.Create(id)
	if err != nil {
		return nil, err
	}
	if err := c.describe(e, abs, name); err != nil {
		return nil, err
	}
	return e, nil
}

// Retrieve returns the collection for dir, creating it when absent. The
// name is updated when it differs.
func (c *Store) Retrieve(dir, name string) (*store.Entry, error) {
	abs, id, err := c.locate(dir)
	if err != nil {
		return nil, err
	}
	e, err := c.store.Retrieve(id)
	if err != nil {
		return nil, err
	}
	if cur, _ := Name(e); cur == name {
		if p, _ := Path(e); p == abs {
			return e, nil
		}
	}
	if err := c.describe(e, abs, name); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Store) locate(dir string) (string, storeid.ID, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", storeid.ID{}, fmt.Errorf("collection: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", storeid.ID{}, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	abs, sum, err := checksum.Path(dir)
	if err != nil {
		return "", storeid.ID{}, err
	}
	id, err := collectionID(sum)
	return abs, id, err
}

func (c *Store) describe(e *store.Entry, abs, name string) error {
	if _, err := e.Header().Set(fieldPath, header.String(abs)); err != nil {
		return err
	}
	if _, err := e.Header().Set(fieldName, header.String(name)); err != nil {
		return err
	}
	return c.store.Update(e)
}

// AddCalendar retrieves the calendar entry for file and links it with coll.
func (c *Store) AddCalendar(coll *store.Entry, file string) (*store.Entry, error) {
	abs, sum, err := checksum.Path(file)
	if err != nil {
		return nil, err
	}
	id, err := calendarID(sum)
	if err != nil {
		return nil, err
	}
	cal, err := c.store.Retrieve(id)
	if err != nil {
		return nil, err
	}
	if p, _ := Path(cal); p != abs {
		if _, err := cal.Header().Set(fieldPath, header.String(abs)); err != nil {
			return nil, err
		}
		if err := c.store.Update(cal); err != nil {
			return nil, err
		}
	}
	if err := c.linker.Add(coll, cal); err != nil {
		return nil, err
	}
	return cal, nil
}

// Import retrieves the collection for dir and adds a calendar for every
// regular file below it. Hidden files and directories are skipped.
func (c *Store) Import(dir, name string) (*store.Entry, []storeid.ID, error) {
	coll, err := c.Retrieve(dir, name)
	if err != nil {
		return nil, nil, err
	}
	c.logger.Info("collection added", "id", coll.Location().WithoutBase().String(), "path", dir)

	var added []storeid.ID
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("collection: walk", "path", p, "error", err)
			return nil
		}
		if p != dir && storage.Hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		cal, err := c.AddCalendar(coll, p)
		if err != nil {
			return err
		}
		c.logger.Debug("calendar added", "id", cal.Location().WithoutBase().String(), "path", p)
		added = append(added, cal.Location().WithoutBase())
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return coll, added, nil
}

// Calendars iterates the calendar entries coll links to. Links to entries
// outside the calendar directory are ignored.
func (c *Store) Calendars(coll *store.Entry) (*link.EntryIter[*store.Entry], error) {
	links, err := link.Links(coll)
	if err != nil {
		return nil, err
	}
	var cals []link.Link
	for _, l := range link.Canonical(links) {
		if isCalendar(l.Target()) {
			cals = append(cals, l)
		}
	}
	return link.Entries(c.store, cals), nil
}

func isCalendar(id storeid.ID) bool {
	return id.HasPrefix(CalendarDir) && !id.HasPrefix(Dir)
}

// List returns every collection, ordered by ID.
func (c *Store) List() ([]*store.Entry, error) {
	ids, err := c.store.Entries(Dir)
	if err != nil {
		return nil, err
	}
	out := make([]*store.Entry, 0, len(ids))
	for _, id := range ids {
		e, err := c.store.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// DeleteByHash deletes every calendar of the collection with hash and then
// the collection itself. Links held by calendars to other entries are
// removed on both sides. It returns the deleted IDs.
func (c *Store) DeleteByHash(hash string) ([]storeid.ID, error) {
	coll, err := c.Get(hash)
	if err != nil {
		return nil, err
	}
	it, err := c.Calendars(coll)
	if err != nil {
		return nil, err
	}
	cals, err := it.Collect()
	if err != nil {
		return nil, err
	}

	var deleted []storeid.ID
	for _, cal := range cals {
		if err := c.remove(cal); err != nil {
			return deleted, err
		}
		deleted = append(deleted, cal.Location().WithoutBase())
	}

	// calendars removed their back-links, reload to see it
	coll, err = c.Get(hash)
	if err != nil {
		return deleted, err
	}
	if err := c.remove(coll); err != nil {
		return deleted, err
	}
	return append(deleted, coll.Location().WithoutBase()), nil
}

func (c *Store) remove(e *store.Entry) error {
	if err := c.linker.RemoveAll(e); err != nil {
		return err
	}
	if err := c.store.Delete(e.Location()); err != nil {
		return err
	}
	c.logger.Debug("deleted", "id", e.Location().WithoutBase().String())
	return nil
}

// Path returns the referenced path of a collection or calendar.
func Path(e link.Entry) (string, error) {
	return text(e, fieldPath)
}

// Name returns the name of a collection.
func Name(e link.Entry) (string, error) {
	return text(e, fieldName)
}

func text(e link.Entry, field string) (string, error) {
	v, found, err := e.Header().Read(field)
	if err != nil {
		return "", err
	}
	s, ok := v.(header.String)
	if !found || !ok {
		return "", fmt.Errorf("%w: %s: %s", ErrMissingField, e.Location(), field)
	}
	return string(s), nil
}

// HashOf returns the hash part of a collection or calendar ID.
func HashOf(id storeid.ID) string {
	return path.Base(id.String())
}
