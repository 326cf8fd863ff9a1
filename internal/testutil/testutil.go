// Package testutil provides shared test helpers for setting up stores and databases.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/pimstore/internal/index"
	"github.com/starford/pimstore/internal/storage"
	"github.com/starford/pimstore/internal/store"
)

// Discard is a logger that drops everything.
var Discard = slog.New(slog.DiscardHandler)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "pimstore-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary store directory and returns the entry store
// on top of it along with its provider.
func TestStore(t *testing.T) (*store.Store, storage.Provider) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.New(fs), fs
}
