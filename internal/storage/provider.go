// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/margin/internal/models"

// Provider is the interface for vault file operations. Paths are relative to
// the vault root.
type Provider interface {
	// Root returns the absolute vault directory.
	Root() string
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Create atomically writes a file that must not exist yet.
	Create(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
