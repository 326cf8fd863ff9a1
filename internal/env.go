package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/pimstore/internal/collection"
	"github.com/starford/pimstore/internal/entryservice"
	"github.com/starford/pimstore/internal/index"
	"github.com/starford/pimstore/internal/storage"
	"github.com/starford/pimstore/internal/store"
)

// Env bundles the opened store, index and the services built on them.
type Env struct {
	FS          *storage.FS
	Store       *store.Store
	DB          *index.DB
	Service     *entryservice.Service
	Collections *collection.Store
}

// OpenEnv opens the store directory and the SQLite index described by cfg
// and brings the index up to date with the store.
func OpenEnv(cfg *Config, logger *slog.Logger) (*Env, error) {
	if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, fs, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	s := store.New(fs)
	return &Env{
		FS:          fs,
		Store:       s,
		DB:          db,
		Service:     entryservice.NewService(s, db, logger),
		Collections: collection.New(s, logger),
	}, nil
}

// Resync brings the index up to date after changes made outside the
// entry service.
func (e *Env) Resync(logger *slog.Logger) error {
	return index.Sync(e.DB, e.FS, logger)
}

// Close releases the index.
func (e *Env) Close() error {
	return e.DB.Close()
}
