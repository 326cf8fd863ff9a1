package index

import "github.com/starford/pimstore/internal/models"

// EntryIndex defines the interface for entry indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type EntryIndex interface {
	UpsertEntry(e EntryRow, edges []models.Edge) error
	DeleteEntry(id string) error
	GetChecksum(id string) (string, error)
	GetEntry(id string) (*EntryRow, error)
	ListEntries(limit, offset int, prefix, sort string) ([]EntryRow, int, error)
	Backlinks(target string) ([]models.Edge, error)
	Graph() ([]GraphNode, []models.Edge, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies EntryIndex at compile time.
var _ EntryIndex = (*DB)(nil)
