package engine

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/lexgo/manifest"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/segment"
)

// MergePolicy decides which segments to consolidate. Plan is called
// after every commit and completed merge with the segments currently
// eligible; each returned group is merged independently.
type MergePolicy interface {
	Plan(segments []manifest.SegmentInfo) [][]model.SegmentID
}

// TieredPolicy groups segments of similar size and merges a tier once
// it holds enough of them. Small flush segments are consolidated
// quickly while large settled segments are left alone, keeping write
// amplification bounded.
type TieredPolicy struct {
	// MinMerge is the number of segments a tier needs before it is
	// merged. Default 4.
	MinMerge int

	// MaxMerge caps the number of segments merged at once. Default 10.
	MaxMerge int

	// BandFactor is the width of a size tier: a segment joins the tier
	// anchored at size s while its size is at most s*BandFactor.
	// Default 4.
	BandFactor float64

	// FloorSize lifts tiny segments into one common tier so that many
	// small flushes merge together regardless of exact size.
	// Default 1 MiB.
	FloorSize int64
}

// NewTieredPolicy returns a TieredPolicy with default settings.
func NewTieredPolicy() *TieredPolicy {
	return &TieredPolicy{
		MinMerge:   4,
		MaxMerge:   10,
		BandFactor: 4,
		FloorSize:  1 << 20,
	}
}

// Plan implements MergePolicy.
func (p *TieredPolicy) Plan(segments []manifest.SegmentInfo) [][]model.SegmentID {
	infos := append([]manifest.SegmentInfo(nil), segments...)
	sort.Slice(infos, func(i, j int) bool { return infos[i].Size < infos[j].Size })

	effective := func(size int64) int64 {
		if size < p.FloorSize {
			return p.FloorSize
		}
		return size
	}

	var groups [][]model.SegmentID
	for i := 0; i < len(infos); {
		anchor := effective(infos[i].Size)
		j := i + 1
		for j < len(infos) && effective(infos[j].Size) <= anchor*int64(p.BandFactor) && j-i < p.MaxMerge {
			j++
		}
		if j-i >= p.MinMerge {
			ids := make([]model.SegmentID, 0, j-i)
			for _, info := range infos[i:j] {
				ids = append(ids, info.ID)
			}
			groups = append(groups, ids)
		}
		i = j
	}
	return groups
}

// maybeMerge asks the policy for merge work and schedules it in the
// background. Segments already part of an in-flight merge are excluded.
func (e *Engine) maybeMerge() {
	if e.closed.Load() {
		return
	}

	e.mu.Lock()
	eligible := make([]manifest.SegmentInfo, 0, len(e.current.Segments))
	for _, info := range e.current.Segments {
		if !e.merging[info.ID] {
			eligible = append(eligible, info)
		}
	}
	groups := e.policy.Plan(eligible)
	for _, group := range groups {
		for _, id := range group {
			e.merging[id] = true
			e.segments[id].refs++
		}
	}
	e.mu.Unlock()

	for _, group := range groups {
		group := group
		e.background.Go(func() error {
			if err := e.mergeGroup(e.bgCtx, group); err != nil {
				if e.bgCtx.Err() == nil {
					e.logger.Error("merge failed", "error", err)
				}
				return nil
			}
			e.maybeMerge()
			return nil
		})
	}
}

// Optimize synchronously merges all live segments into one, reclaiming
// every tombstoned document. A single segment without tombstones is
// already optimal and left alone.
func (e *Engine) Optimize(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.mu.Lock()
	var ids []model.SegmentID
	for _, info := range e.current.Segments {
		if e.merging[info.ID] {
			continue
		}
		ids = append(ids, info.ID)
	}
	if len(ids) == 1 {
		if ref := e.segments[ids[0]]; ref != nil && ref.seg.Deleted() == nil {
			e.mu.Unlock()
			return nil
		}
	}
	if len(ids) == 0 {
		e.mu.Unlock()
		return nil
	}
	for _, id := range ids {
		e.merging[id] = true
		e.segments[id].refs++
	}
	e.mu.Unlock()

	return e.mergeGroup(ctx, ids)
}

// mergeGroup merges the pinned sources into a new segment and publishes
// the swap. Tombstones that landed on a source while the merge ran are
// remapped onto the merged segment under publishMu, so no delete is
// ever lost to a racing merge.
func (e *Engine) mergeGroup(ctx context.Context, ids []model.SegmentID) error {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	e.mu.Lock()
	sources := make([]*segment.Segment, 0, len(ids))
	for _, id := range ids {
		sources = append(sources, e.segments[id].seg)
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		for _, id := range ids {
			delete(e.merging, id)
			e.release(id)
		}
		e.mu.Unlock()
	}()

	newID := e.allocSegmentID()
	name := segment.BlobName(newID)

	wb, err := e.store.Create(ctx, name)
	if err != nil {
		return err
	}
	var w io.Writer = wb
	if e.limiter != nil {
		w = &throttledWriter{ctx: ctx, lim: e.limiter, w: wb}
	}
	res, err := segment.Merge(w, e.codec, sources)
	if err != nil {
		wb.Close()
		e.discard(name)
		return err
	}
	if err := wb.Close(); err != nil {
		e.discard(name)
		return err
	}

	merged, err := segment.Open(ctx, e.store, newID, 0)
	if err != nil {
		e.discard(name)
		return err
	}

	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	carry := roaring.New()
	for i, s := range sources {
		cur := s.Deleted()
		if cur == nil {
			continue
		}
		captured := res.CapturedDeleted(i)
		cur.Iterate(func(x uint32) bool {
			if captured != nil && captured.Contains(x) {
				return true
			}
			if local, ok := res.Remap(i, model.LocalID(x)); ok {
				carry.Add(uint32(local))
			}
			return true
		})
	}

	e.mu.Lock()
	m := e.current.Clone()
	m.NextSegmentID = e.nextID
	e.mu.Unlock()

	// The carried-over tombstones are staged under the generation about
	// to be published; the merged segment is not visible to anyone yet,
	// so a failed publish discards both blobs and changes nothing.
	var delGen uint64
	if !carry.IsEmpty() {
		delGen = m.Generation + 1
		if err := segment.SaveTombstones(ctx, e.store, newID, delGen, carry); err != nil {
			e.discard(name)
			return err
		}
		merged.SetDeleted(carry)
	}

	drop := make(map[model.SegmentID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.Segments[:0]
	for _, info := range m.Segments {
		if !drop[info.ID] {
			kept = append(kept, info)
		}
	}
	m.Segments = append(kept, manifest.SegmentInfo{
		ID:       newID,
		DocCount: res.DocCount,
		Size:     merged.Size(),
		DelGen:   delGen,
	})

	if err := e.manifests.Save(ctx, m); err != nil {
		e.discard(name)
		if delGen != 0 {
			e.discard(segment.TombstoneName(newID, delGen))
		}
		return err
	}

	e.mu.Lock()
	e.current = m
	e.segments[newID] = &segmentRef{seg: merged, refs: 1}
	for _, id := range ids {
		if ref := e.segments[id]; ref != nil {
			ref.dropped = true
			e.release(id)
		}
	}
	e.mu.Unlock()

	e.logger.Info("merge published",
		"generation", m.Generation,
		"merged", len(ids),
		"segment", uint64(newID),
		"docs", res.DocCount)
	return nil
}

// discard removes a half-written merge output. Best effort.
func (e *Engine) discard(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.store.Delete(ctx, name); err != nil {
		e.logger.Warn("merge output not discarded", "blob", name, "error", err)
	}
}

// throttledWriter limits write throughput with a token bucket, one
// token per byte. Chunks are capped at the limiter's burst size.
type throttledWriter struct {
	ctx context.Context
	lim *rate.Limiter
	w   io.Writer
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	var written int
	for len(p) > 0 {
		n := len(p)
		if burst := t.lim.Burst(); n > burst {
			n = burst
		}
		if err := t.lim.WaitN(t.ctx, n); err != nil {
			return written, err
		}
		n, err := t.w.Write(p[:n])
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
