// Package apperr holds the error kinds shared by storage, index and the command surfaces.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidName is returned when a vault name or note id sanitizes to nothing.
	ErrInvalidName = errors.New("invalid name")

	// ErrWriteVerification is returned when a written note is missing or empty on disk.
	ErrWriteVerification = errors.New("write verification failed")

	// ErrIndexCreation is returned when an index cannot be created or opened at a path.
	ErrIndexCreation = errors.New("index creation failed")

	// ErrIndex is returned for any add, delete or commit failure of the search index.
	ErrIndex = errors.New("index error")

	// ErrIO is returned for generic file system failures.
	ErrIO = errors.New("io error")

	// ErrClosed is returned when operating on a closed index or vault.
	ErrClosed = errors.New("closed")
)

// IndexError reports a failed index step. When returned from a note mutation the
// file system side has already been committed; only the indexing step needs a retry.
type IndexError struct {
	Op  string
	ID  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index: %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Is makes every IndexError match ErrIndex.
func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// IsPartial reports whether err is an index failure that followed a committed
// file system change.
func IsPartial(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}
