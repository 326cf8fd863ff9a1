// Package entryservice coordinates the entry store, the linker, and the
// index behind the CLI, REST and MCP surfaces.
package entryservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/pimstore/internal/apperr"
	"github.com/starford/pimstore/internal/checksum"
	"github.com/starford/pimstore/internal/header"
	"github.com/starford/pimstore/internal/index"
	"github.com/starford/pimstore/internal/link"
	"github.com/starford/pimstore/internal/models"
	"github.com/starford/pimstore/internal/parser"
	"github.com/starford/pimstore/internal/store"
	"github.com/starford/pimstore/internal/storeid"
)

// ErrSelfLink is returned when an entry is linked to itself.
var ErrSelfLink = errors.New("entryservice: entry cannot link to itself")

// EntryDetail is the full representation of an entry.
type EntryDetail struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Checksum      string         `json:"checksum"`
	Tags          []string       `json:"tags"`
	Header        map[string]any `json:"header,omitempty"`
	Links         []models.Edge  `json:"links"`
	Backlinks     []models.Edge  `json:"backlinks"`
	MarkdownLinks []parser.Link  `json:"markdown_links"`
	WikiLinks     []string       `json:"wikilinks"`
}

// EntryListItem is a lightweight item in a list response.
type EntryListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	LinkCount int       `json:"link_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notifier receives change notifications. *sse.Broker implements it.
type Notifier interface {
	PublishEntryEvent(kind, id string)
	PublishLinkEvent(op, from, to string)
}

// Service coordinates storage, linking and index operations. Operations
// touching several entries are serialised.
type Service struct {
	store  *store.Store
	linker *link.Linker[*store.Entry]
	db     index.EntryIndex
	logger *slog.Logger
	notify Notifier

	mu sync.Mutex
}

// NewService creates a new entry service.
func NewService(s *store.Store, db index.EntryIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, linker: link.NewLinker(s, logger), db: db, logger: logger}
}

// SetNotifier registers n to receive entry and link events.
func (s *Service) SetNotifier(n Notifier) {
	s.notify = n
}

// Store returns the underlying entry store.
func (s *Service) Store() *store.Store { return s.store }

func parseID(p string) (storeid.ID, error) {
	return storeid.NewBaseless(p)
}

// GetEntry reads an entry from the store and enriches it with backlinks
// from the index.
func (s *Service) GetEntry(_ context.Context, p string) (*EntryDetail, error) {
	id, err := parseID(p)
	if err != nil {
		return nil, err
	}
	e, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(e)
}

// CreateEntry stores a new entry from raw content. Links declared in the
// content's header are established through the linker, so every target
// must exist and receives its back-link.
func (s *Service) CreateEntry(_ context.Context, p string, content []byte) (*EntryDetail, error) {
	id, err := parseID(p)
	if err != nil {
		return nil, err
	}
	parsed, err := store.Decode(id, content)
	if err != nil {
		return nil, err
	}
	declared, err := link.Links(parsed)
	if err != nil {
		return nil, err
	}
	declared = link.Canonical(declared)

	s.mu.Lock()
	defer s.mu.Unlock()

	targets := make(map[string]*store.Entry, len(declared))
	for _, l := range declared {
		if l.Refers(id) {
			return nil, fmt.Errorf("%w: %s", ErrSelfLink, id)
		}
		t, err := s.store.Get(l.Target())
		if err != nil {
			return nil, fmt.Errorf("link target %s: %w", l.Target(), err)
		}
		targets[l.Target().String()] = t
	}

	e, err := s.store.Create(id)
	if err != nil {
		return nil, err
	}
	if err := stripLinks(parsed.Header()); err != nil {
		return nil, err
	}
	e.SetHeader(parsed.Header())
	e.SetBody(parsed.Body())
	if err := s.store.Update(e); err != nil {
		return nil, err
	}

	for _, l := range declared {
		t := targets[l.Target().String()]
		if anno, ok := l.Annotation(); ok {
			err = s.linker.AddAnnotated(e, t, anno)
		} else {
			err = s.linker.Add(e, t)
		}
		if err != nil {
			return nil, err
		}
		s.reindex(t)
	}
	s.reindex(e)
	s.publishEntry("created", e)
	return s.buildDetail(e)
}

// stripLinks drops the link field, and its parent table once empty, so the
// linker starts from an empty set.
func stripLinks(h *header.Header) error {
	if _, err := h.Delete(link.Field); err != nil {
		return fmt.Errorf("%w: %w", link.ErrWrongFieldType, err)
	}
	parent := link.Field[:strings.LastIndex(link.Field, ".")]
	if v, found, _ := h.Read(parent); found {
		if t, ok := v.(header.Table); ok && len(t) == 0 {
			_, _ = h.Delete(parent)
		}
	}
	return nil
}

// DeleteEntry unlinks an entry from all its peers and then removes it from
// the store and the index.
func (s *Service) DeleteEntry(_ context.Context, p string) error {
	id, err := parseID(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.store.Get(id)
	if err != nil {
		return err
	}
	peers, err := link.Links(e)
	if err != nil {
		return err
	}
	if err := s.linker.RemoveAll(e); err != nil {
		return err
	}
	if err := s.store.Delete(id); err != nil {
		return err
	}
	if err := s.db.DeleteEntry(id.String()); err != nil {
		return err
	}
	s.reindexIDs(peers)
	s.publishEntry("deleted", e)
	return nil
}

// ListEntries returns paginated entries from the index.
func (s *Service) ListEntries(_ context.Context, limit, offset int, prefix, sort string) ([]EntryListItem, int, error) {
	rows, total, err := s.db.ListEntries(limit, offset, prefix, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]EntryListItem, len(rows))
	for i, r := range rows {
		items[i] = EntryListItem{
			ID:        r.ID,
			Title:     r.Title,
			Checksum:  r.Checksum,
			LinkCount: r.LinkCount,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Link links from and to. A non-empty annotation makes the forward link
// annotated; the back-link stays plain.
func (s *Service) Link(_ context.Context, from, to, annotation string) error {
	return s.pair(from, to, func(a, b *store.Entry) error {
		if annotation != "" {
			return s.linker.AddAnnotated(a, b, annotation)
		}
		return s.linker.Add(a, b)
	}, "added")
}

// Unlink removes every link between from and to on both sides.
func (s *Service) Unlink(_ context.Context, from, to string) error {
	return s.pair(from, to, s.linker.Remove, "removed")
}

func (s *Service) pair(from, to string, op func(a, b *store.Entry) error, kind string) error {
	fromID, err := parseID(from)
	if err != nil {
		return err
	}
	toID, err := parseID(to)
	if err != nil {
		return err
	}
	if fromID.Equal(toID) {
		return fmt.Errorf("%w: %s", ErrSelfLink, fromID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.store.Get(fromID)
	if err != nil {
		return err
	}
	b, err := s.store.Get(toID)
	if err != nil {
		return err
	}
	if err := op(a, b); err != nil {
		return err
	}
	s.reindex(a)
	s.reindex(b)
	if s.notify != nil {
		s.notify.PublishLinkEvent(kind, fromID.String(), toID.String())
	}
	return nil
}

// Links returns the links stored in the entry's header.
func (s *Service) Links(_ context.Context, p string) ([]models.Edge, error) {
	id, err := parseID(p)
	if err != nil {
		return nil, err
	}
	e, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	links, err := link.Links(e)
	if err != nil {
		return nil, err
	}
	return index.Edges(id.String(), link.Canonical(links)), nil
}

// Backlinks returns every indexed link pointing at the entry.
func (s *Service) Backlinks(_ context.Context, p string) ([]models.Edge, error) {
	id, err := parseID(p)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(id.String())
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// Check runs the store-wide consistency check.
func (s *Service) Check(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return link.Check(s.store, s.logger)
}

// GC deletes every entry below dir that has no links and returns the
// deleted IDs, ordered. With dryRun nothing is deleted.
func (s *Service) GC(_ context.Context, dir string, dryRun bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.store.Entries(dir)
	if err != nil {
		return nil, err
	}
	all := make([]link.Link, 0, len(ids))
	for _, id := range ids {
		all = append(all, link.Plain(id))
	}

	it := link.Entries(s.store, all)
	if dryRun {
		unlinked, err := it.WithLessThanNLinks(1).Collect()
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(unlinked))
		for _, e := range unlinked {
			out = append(out, e.Location().WithoutBase().String())
		}
		return out, nil
	}

	kept, err := it.DeleteUnlinked().Collect()
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{}, len(kept))
	for _, e := range kept {
		keep[e.Location().WithoutBase().String()] = struct{}{}
	}
	var deleted []string
	for _, id := range ids {
		key := id.WithoutBase().String()
		if _, ok := keep[key]; ok {
			continue
		}
		if err := s.db.DeleteEntry(key); err != nil {
			return deleted, err
		}
		deleted = append(deleted, key)
		if s.notify != nil {
			s.notify.PublishEntryEvent("deleted", key)
		}
	}
	s.logger.Info("gc finished", "dir", dir, "deleted", len(deleted), "kept", len(kept))
	return nonNilSlice(deleted), nil
}

// Graph returns all nodes and links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []models.Edge, error) {
	nodes, edges, err := s.db.Graph()
	if err != nil {
		return nil, nil, err
	}
	return nonNilSlice(nodes), nonNilSlice(edges), nil
}

// reindex refreshes the index row of e. Failures are logged: the store
// stays authoritative and the watcher or the next sync catches up.
func (s *Service) reindex(e *store.Entry) {
	if err := index.IndexEntry(s.db, e); err != nil {
		s.logger.Warn("reindex failed", "id", e.Location().WithoutBase().String(), "error", err)
	}
}

func (s *Service) reindexIDs(links []link.Link) {
	for _, l := range link.Canonical(links) {
		e, err := s.store.Get(l.Target())
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("reindex failed", "id", l.Target().String(), "error", err)
			continue
		}
		s.reindex(e)
	}
}

func (s *Service) publishEntry(kind string, e *store.Entry) {
	if s.notify != nil {
		s.notify.PublishEntryEvent(kind, e.Location().WithoutBase().String())
	}
}

// buildDetail constructs an EntryDetail without re-reading the file.
func (s *Service) buildDetail(e *store.Entry) (*EntryDetail, error) {
	data, err := e.Encode()
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	id := e.Location().WithoutBase().String()
	links, err := link.Links(e)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(id)
	if err != nil {
		return nil, err
	}
	hdr := header.ToYAML(e.Header().Table())
	if len(hdr) == 0 {
		hdr = nil
	}
	return &EntryDetail{
		ID:            id,
		Title:         res.Title,
		Content:       e.Body(),
		Checksum:      checksum.Sum(data),
		Tags:          nonNilSlice(res.Tags),
		Header:        hdr,
		Links:         nonNilSlice(index.Edges(id, link.Canonical(links))),
		Backlinks:     nonNilSlice(bl),
		MarkdownLinks: nonNilSlice(res.Links),
		WikiLinks:     nonNilSlice(res.WikiLinks),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
