package lexgo

import (
	"github.com/hupe1980/lexgo/engine"
	"github.com/hupe1980/lexgo/schema"
	"github.com/hupe1980/lexgo/search"
	"github.com/hupe1980/lexgo/segment"
)

// The error taxonomy of the lower layers, re-exported so callers can
// match with errors.Is / errors.As without importing every subpackage.

var (
	// ErrClosed is returned by operations on a closed index.
	ErrClosed = engine.ErrClosed

	// ErrNotFound is returned when a document is not visible in the
	// snapshot it is fetched through.
	ErrNotFound = engine.ErrNotFound
)

// LockError reports a failed attempt to acquire the exclusive writer
// lock; acquisition fails fast instead of blocking.
type LockError = engine.LockError

// EmptyIndexError reports a structurally invalid access. Searches that
// merely match nothing return empty results, never this error.
type EmptyIndexError = engine.EmptyIndexError

// SchemaMismatchError reports a document that violates the schema.
// Only the offending document is rejected, never the whole batch.
type SchemaMismatchError = schema.MismatchError

// CorruptSegmentError reports a segment blob that fails structural
// validation or checksum verification.
type CorruptSegmentError = segment.CorruptError

// QueryTooBroadError reports a multi-term query whose dictionary
// expansion exceeded the configured ceiling.
type QueryTooBroadError = search.QueryTooBroadError
