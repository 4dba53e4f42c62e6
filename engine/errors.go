package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrNotFound is returned when a document is not visible in the
	// snapshot it is fetched through, e.g. because it was tombstoned
	// before the snapshot was taken.
	ErrNotFound = errors.New("document not found")

	// ErrWriterDone is returned when a finished writer is reused.
	ErrWriterDone = errors.New("writer already committed or cancelled")
)

// LockError reports a failed attempt to acquire the exclusive writer
// lock. Acquisition never blocks: a second concurrent writer fails fast
// with this error and the caller decides whether to retry.
type LockError struct {
	Name string
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%s lock is held by another writer", e.Name)
}

// EmptyIndexError reports a structurally invalid access, such as
// fetching stored fields for a segment that is not part of the
// snapshot. A search that merely matches nothing returns empty results,
// never this error.
type EmptyIndexError struct {
	Op string
}

func (e *EmptyIndexError) Error() string {
	return fmt.Sprintf("%s: no such structure in this snapshot", e.Op)
}
