// Package engine coordinates the index lifecycle: the single exclusive
// writer, refcounted reader snapshots and the background merger, all on
// top of immutable segments published through the manifest.
//
// Concurrency model: one writer at a time (acquisition fails fast with a
// LockError), any number of concurrent readers, and merges that run in
// the background without blocking either. Readers pin the segment set
// and deletion bitmaps of the generation they opened at; nothing they
// see ever changes underneath them.
package engine
