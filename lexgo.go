package lexgo

import (
	"context"
	"time"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/engine"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/schema"
	"github.com/hupe1980/lexgo/search"
)

// Document is the writer's input: field name to raw text value.
type Document = engine.Document

// Index is an embeddable full-text index over a blob store.
// All methods are safe for concurrent use.
type Index struct {
	engine  *engine.Engine
	logger  *Logger
	metrics MetricsCollector
}

// Open opens (or creates) the index stored in store. The schema is
// fixed for the lifetime of the index.
func Open(ctx context.Context, store blobstore.BlobStore, sch *schema.Schema, opts ...Option) (*Index, error) {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	e, err := engine.Open(ctx, engine.Config{
		Store:       store,
		Schema:      sch,
		Analyzer:    o.analyzer,
		Codec:       o.codec,
		Logger:      o.logger.Logger,
		MergePolicy: o.mergePolicy,
		MergeRate:   o.mergeRate,
	})
	if err != nil {
		return nil, err
	}
	return &Index{engine: e, logger: o.logger, metrics: o.metrics}, nil
}

// OpenPath opens (or creates) an index in a local directory, with
// mmap-backed segment reads.
func OpenPath(ctx context.Context, dir string, sch *schema.Schema, opts ...Option) (*Index, error) {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return nil, err
	}
	return Open(ctx, store, sch, opts...)
}

// Close stops background merges and waits for them to drain. Open
// readers stay valid until closed.
func (ix *Index) Close() error {
	return ix.engine.Close()
}

// Schema returns the index schema.
func (ix *Index) Schema() *schema.Schema {
	return ix.engine.Schema()
}

// Writer acquires the exclusive writer lock and returns a writer for
// one batch of additions and deletions. It fails fast with a LockError
// when another writer is active.
func (ix *Index) Writer() (*Writer, error) {
	w, err := ix.engine.Writer()
	if err != nil {
		return nil, err
	}
	return &Writer{Writer: w, ix: ix}, nil
}

// Writer batches document additions and deletions into one atomic
// commit. See engine.Writer for the full contract.
type Writer struct {
	*engine.Writer
	ix *Index
}

// Commit makes the buffered batch durable and visible atomically.
func (w *Writer) Commit(ctx context.Context) error {
	start := time.Now()
	docs := w.BufferedDocs()
	err := w.Writer.Commit(ctx)
	w.ix.metrics.RecordCommit(docs, time.Since(start), err)
	w.ix.logger.LogCommit(ctx, docs, err)
	return err
}

// Reader opens a point-in-time snapshot. The caller must Close it to
// release its segment pins.
func (ix *Index) Reader() (*engine.Reader, error) {
	return ix.engine.Reader()
}

// Search opens a snapshot, runs the query and returns the top hits in
// rank order. For repeated queries against one consistent view, open a
// Reader once and use the search package directly.
func (ix *Index) Search(ctx context.Context, q search.Query, opts ...search.Option) ([]model.Hit, error) {
	start := time.Now()
	r, err := ix.engine.Reader()
	if err != nil {
		ix.metrics.RecordSearch(0, time.Since(start), err)
		ix.logger.LogSearch(ctx, 0, err)
		return nil, err
	}
	defer r.Close()

	hits, err := search.Search(ctx, r, q, opts...)
	ix.metrics.RecordSearch(len(hits), time.Since(start), err)
	ix.logger.LogSearch(ctx, len(hits), err)
	return hits, err
}

// DocCount returns the number of live documents.
func (ix *Index) DocCount() (uint64, error) {
	r, err := ix.engine.Reader()
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return r.DocCount(), nil
}

// Optimize synchronously merges all segments into one, reclaiming
// every tombstoned document.
func (ix *Index) Optimize(ctx context.Context) error {
	start := time.Now()
	err := ix.engine.Optimize(ctx)
	ix.metrics.RecordOptimize(time.Since(start), err)
	ix.logger.LogOptimize(ctx, err)
	return err
}
