// Package lexgo is an embeddable full-text indexing and retrieval
// engine with BM25 relevance ranking.
//
// Documents are analyzed into an inverted index stored as immutable
// segments; a manifest tracks the live segment set and every commit or
// merge publishes a new generation with one atomic pointer swap.
// Readers open point-in-time snapshots that never change underneath
// them, a single exclusive writer batches additions and deletions, and
// a background merger consolidates small segments concurrently with
// both.
//
// # Quick Start
//
//	ctx := context.Background()
//	sch := schema.New(map[string]schema.Field{
//	    "id":    {Indexed: true, Stored: true, Required: true},
//	    "title": {Indexed: true, Stored: true, Scored: true, Boost: 2.0},
//	    "body":  {Indexed: true, Scored: true},
//	})
//
//	ix, _ := lexgo.OpenPath(ctx, "./data", sch)
//	defer ix.Close()
//
//	w, _ := ix.Writer()
//	w.AddDocument(lexgo.Document{"id": "1", "title": "tale of two cities", "body": "..."})
//	w.Commit(ctx)
//
//	hits, _ := ix.Search(ctx, search.NewTerm("title", "cities"),
//	    search.WithLimit(10), search.WithStoredFields("title"))
//
// # Durability Model
//
// Writes are buffered in memory and become durable and visible in one
// atomic commit. A crash before the commit's manifest swap loses the
// uncommitted batch and nothing else; the previous generation stays
// intact.
//
// # Storage
//
// All state lives in a blobstore.BlobStore. Local directories use
// mmap-backed reads; the blobstore/minio and blobstore/s3 packages
// keep whole indexes in object storage.
package lexgo
