package index

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/pimstore/internal/checksum"
	"github.com/starford/pimstore/internal/link"
	"github.com/starford/pimstore/internal/models"
	"github.com/starford/pimstore/internal/parser"
	"github.com/starford/pimstore/internal/storage"
	"github.com/starford/pimstore/internal/store"
	"github.com/starford/pimstore/internal/storeid"
)

// Sync walks the store and brings the index up to date:
//   - new/changed entries are parsed and upserted
//   - entries removed from disk are deleted from the index
func Sync(db EntryIndex, fs storage.Provider, logger *slog.Logger) error {
	metas, err := fs.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		id, err := storeid.NewBaseless(m.Path)
		if err != nil {
			logger.Warn("sync: bad path", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		disk[id.String()] = struct{}{}

		if checksums[id.String()] == m.Checksum {
			continue
		}

		data, err := fs.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", id.String()))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteEntry(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}

// IndexFile decodes the entry file at path and upserts it into the index.
func IndexFile(db EntryIndex, path string, data []byte) error {
	id, err := storeid.NewBaseless(path)
	if err != nil {
		return err
	}
	e, err := store.Decode(id, data)
	if err != nil {
		return err
	}
	return upsert(db, e, data)
}

// IndexEntry upserts e as it would be written to disk.
func IndexEntry(db EntryIndex, e *store.Entry) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}
	return upsert(db, e, data)
}

func upsert(db EntryIndex, e *store.Entry, data []byte) error {
	links, err := link.Links(e)
	if err != nil {
		return err
	}
	links = link.Canonical(links)
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}

	id := e.Location().WithoutBase().String()
	row := EntryRow{
		ID:        id,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		LinkCount: len(links),
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.UpsertEntry(row, Edges(id, links)); err != nil {
		return fmt.Errorf("index: %s: %w", id, err)
	}
	return nil
}

// Edges converts the links of source into index edges.
func Edges(source string, links []link.Link) []models.Edge {
	out := make([]models.Edge, 0, len(links))
	for _, l := range links {
		anno, ok := l.Annotation()
		out = append(out, models.Edge{
			Source:     source,
			Target:     l.Target().String(),
			Annotation: anno,
			Annotated:  ok,
		})
	}
	return out
}
