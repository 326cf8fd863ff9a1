// Package storage defines the file-system abstraction beneath the entry store.
package storage

import "github.com/starford/pimstore/internal/models"

// Provider is the interface for raw store file operations.
type Provider interface {
	// List returns metadata for every entry file under dir (relative to root).
	List(dir string) ([]models.EntryMetadata, error)
	// Dirs returns every directory under dir (relative to root), excluding dir itself.
	Dirs(dir string) ([]string, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to root).
	Move(oldPath, newPath string) error
	// Exists reports whether a regular file is present at path.
	Exists(path string) (bool, error)
	// Root returns the absolute root directory.
	Root() string
}
