package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/lexgo/analysis"
	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/manifest"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/schema"
	"github.com/hupe1980/lexgo/segment"
)

// Config carries the collaborators an engine is built from. Store and
// Schema are required; the rest defaults.
type Config struct {
	Store    blobstore.BlobStore
	Schema   *schema.Schema
	Analyzer analysis.Analyzer
	Codec    codec.Codec
	Logger   *slog.Logger

	// MergePolicy decides which segments to consolidate after a commit.
	// Nil selects the default tiered policy.
	MergePolicy MergePolicy

	// MergeRate throttles merge write throughput in bytes per second.
	// Nil disables throttling.
	MergeRate *rate.Limiter
}

// Engine owns the live segment registry and the manifest, and hands out
// writers, reader snapshots and merge work.
type Engine struct {
	store     blobstore.BlobStore
	manifests *manifest.Store
	schema    *schema.Schema
	analyzer  analysis.Analyzer
	codec     codec.Codec
	logger    *slog.Logger
	policy    MergePolicy
	limiter   *rate.Limiter

	// mu guards the in-memory view: current manifest, segment registry,
	// id allocation, refcounts and the in-flight merge set.
	mu       sync.Mutex
	current  *manifest.Manifest
	segments map[model.SegmentID]*segmentRef
	nextID   model.SegmentID
	merging  map[model.SegmentID]bool

	// publishMu serializes manifest publishes. Tombstone application and
	// the manifest swap happen under it, so a merge never loses deletes
	// that race with its publish.
	publishMu sync.Mutex

	writerHeld atomic.Bool
	closed     atomic.Bool

	background errgroup.Group
	bgCtx      context.Context
	bgCancel   context.CancelFunc
}

// segmentRef is a registry entry with a manual refcount: one reference
// for manifest membership plus one per open snapshot. A dropped segment
// is physically reclaimed when the count reaches zero.
type segmentRef struct {
	seg     *segment.Segment
	refs    int
	dropped bool
}

// Open loads the current manifest and all live segments, and starts the
// background merge supervisor.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Analyzer == nil {
		cfg.Analyzer = analysis.NewStandard()
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MergePolicy == nil {
		cfg.MergePolicy = NewTieredPolicy()
	}

	manifests := manifest.NewStore(cfg.Store)
	m, err := manifests.Load(ctx)
	if err != nil {
		return nil, err
	}

	segments := make(map[model.SegmentID]*segmentRef, len(m.Segments))
	var segMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, info := range m.Segments {
		info := info
		g.Go(func() error {
			seg, err := segment.Open(gctx, cfg.Store, info.ID, info.DelGen)
			if err != nil {
				return err
			}
			segMu.Lock()
			segments[info.ID] = &segmentRef{seg: seg, refs: 1}
			segMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	nextID := m.NextSegmentID
	for _, info := range m.Segments {
		if info.ID >= nextID {
			nextID = info.ID + 1
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	e := &Engine{
		store:     cfg.Store,
		manifests: manifests,
		schema:    cfg.Schema,
		analyzer:  cfg.Analyzer,
		codec:     cfg.Codec,
		logger:    cfg.Logger,
		policy:    cfg.MergePolicy,
		limiter:   cfg.MergeRate,
		current:   m,
		segments:  segments,
		nextID:    nextID,
		merging:   make(map[model.SegmentID]bool),
		bgCtx:     bgCtx,
		bgCancel:  bgCancel,
	}

	e.logger.Info("index opened",
		"generation", m.Generation,
		"segments", len(m.Segments))
	return e, nil
}

// Schema returns the immutable schema the engine was opened with.
func (e *Engine) Schema() *schema.Schema { return e.schema }

// Close stops background merges and waits for them to drain. Open
// snapshots stay valid until released; their segments are simply no
// longer reclaimed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.bgCancel()
	err := e.background.Wait()
	e.logger.Info("index closed")
	return err
}

func (e *Engine) allocSegmentID() model.SegmentID {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	return id
}

// release drops one reference and reclaims the segment's blobs when it
// was removed from the manifest and nobody holds it anymore.
// Callers must hold e.mu.
func (e *Engine) release(id model.SegmentID) {
	ref := e.segments[id]
	if ref == nil {
		return
	}
	ref.refs--
	if ref.refs > 0 || !ref.dropped {
		return
	}
	delete(e.segments, id)
	if e.closed.Load() {
		return
	}
	go e.reap(id)
}

// reap deletes the blobs of a segment no generation references anymore.
// Best effort: a leaked blob is harmless and found by the next cleanup.
func (e *Engine) reap(id model.SegmentID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.store.Delete(ctx, segment.BlobName(id)); err != nil {
		e.logger.Warn("segment blob not reclaimed", "segment", uint64(id), "error", err)
		return
	}
	sidecars, err := e.store.List(ctx, segment.TombstonePrefix(id))
	if err != nil {
		e.logger.Warn("tombstone sidecars not listed", "segment", uint64(id), "error", err)
		return
	}
	for _, name := range sidecars {
		if err := e.store.Delete(ctx, name); err != nil {
			e.logger.Warn("tombstone sidecar not reclaimed", "blob", name, "error", err)
		}
	}
	e.logger.Debug("segment reclaimed", "segment", uint64(id))
}
