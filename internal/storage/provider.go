// Package storage is the file layer under a vault: flat note files addressed
// by paths relative to the vault root.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the file surface of one vault. Every path argument is relative
// to Root and is rejected when it resolves outside it.
type Provider interface {
	Root() string
	// List describes the note files directly under dir. Temp files and
	// subdirectories are skipped.
	List(dir string) ([]models.NoteMetadata, error)
	Read(path string) ([]byte, error)
	// Stat reports whether path exists and its size in bytes. A missing file
	// is not an error.
	Stat(path string) (exists bool, size int64, err error)
	// Write replaces path atomically; readers see the old or the new bytes.
	Write(path string, content []byte) error
	Delete(path string) error
	// Move renames oldPath to newPath and fails if newPath already exists.
	Move(oldPath, newPath string) error
}
