// Package segment implements the immutable unit of index storage: a
// self-describing container holding a sorted term dictionary, per-field
// postings with positions, compressed stored fields and per-field length
// norms, all guarded by CRC32 section checksums.
//
// A segment never changes after it is written. The only mutable state is
// the deletion bitmap, which lives in a sidecar blob and is swapped
// copy-on-write so readers keep a consistent view.
//
// The Builder buffers documents and serializes new segments; Merge
// consolidates sealed segments, reclaiming tombstoned documents.
package segment
