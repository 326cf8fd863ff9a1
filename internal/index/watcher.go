package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/pimstore/internal/storage"
	"github.com/starford/pimstore/internal/storeid"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted"; id is the baseless entry ID.
type EventCallback func(kind string, id string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the store root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db EntryIndex, p storage.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := p.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, id string) {
		if cb != nil {
			cb(kind, id)
		}
	}

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, p, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			if storage.Hidden(filepath.Base(absPath)) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, p, absPath, logger, notify)
					continue
				}
			}

			if !strings.HasSuffix(absPath, storage.EntryExt) {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			id, idErr := storeid.NewBaseless(rel)
			if idErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := p.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("id", id.String()), slog.String("error", readErr.Error()))
					continue
				}
				if idxErr := IndexFile(db, rel, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("id", id.String()), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("id", id.String()), slog.String("op", kind))
				notify(kind, id.String())

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteEntry(id.String()); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("id", id.String()), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id.String()))
				notify("deleted", id.String())

			case ev.Op&fsnotify.Rename != 0:
				// Rename fires on the old path only; the new path arrives
				// as a separate Create when it stays inside a watched dir.
				if delErr := db.DeleteEntry(id.String()); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("id", id.String()), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("id", id.String()))
					notify("deleted", id.String())
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index rows without a file on disk and indexes files the
// index does not know in their current form.
func reconcile(db EntryIndex, p storage.Provider, logger *slog.Logger, notify EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := p.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	type file struct{ path, checksum string }
	disk := make(map[string]file, len(metas))
	for _, m := range metas {
		id, err := storeid.NewBaseless(m.Path)
		if err != nil {
			continue
		}
		disk[id.String()] = file{m.Path, m.Checksum}
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if delErr := db.DeleteEntry(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("id", id))
				notify("deleted", id)
			}
		}
	}

	for id, f := range disk {
		if checksums[id] == f.checksum {
			continue
		}
		data, readErr := p.Read(f.path)
		if readErr != nil {
			continue
		}
		if idxErr := IndexFile(db, f.path, data); idxErr == nil {
			logger.Debug("reconcile: indexed new", slog.String("id", id))
			notify("created", id)
		}
	}
}

// indexNewDir indexes any entry files found in a newly created directory.
func indexNewDir(db EntryIndex, p storage.Provider, dirPath string, logger *slog.Logger, notify EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || storage.Hidden(d.Name()) || !strings.HasSuffix(path, storage.EntryExt) {
			return nil
		}
		rel, relErr := filepath.Rel(p.Root(), path)
		if relErr != nil {
			return nil
		}
		data, readErr := p.Read(rel)
		if readErr != nil {
			return nil
		}
		if idxErr := IndexFile(db, rel, data); idxErr == nil {
			id, _ := storeid.NewBaseless(rel)
			logger.Debug("watcher: indexed from new dir", slog.String("id", id.String()))
			notify("created", id.String())
		}
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && storage.Hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
