package engine

import (
	"sort"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/schema"
	"github.com/hupe1980/lexgo/segment"
)

// SegmentView is one segment as pinned by a snapshot: the immutable
// segment plus the deletion bitmap captured when the snapshot opened.
// Matchers bind to the pinned bitmap, so deletes committed later stay
// invisible to this snapshot.
type SegmentView struct {
	Seg     *segment.Segment
	Deleted *roaring.Bitmap
}

// Reader is a point-in-time snapshot of the index. It pins its segments
// against reclamation until Close, and its view never changes: commits,
// deletes and merges published afterwards are all invisible.
//
// A reader is safe for concurrent use.
type Reader struct {
	e      *Engine
	gen    uint64
	views  []SegmentView
	byID   map[model.SegmentID]int
	closed atomic.Bool
}

// Reader opens a snapshot of the current generation.
func (e *Engine) Reader() (*Reader, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	e.mu.Lock()
	views := make([]SegmentView, 0, len(e.current.Segments))
	for _, info := range e.current.Segments {
		ref := e.segments[info.ID]
		if ref == nil {
			continue
		}
		ref.refs++
		views = append(views, SegmentView{Seg: ref.seg, Deleted: ref.seg.Deleted()})
	}
	gen := e.current.Generation
	e.mu.Unlock()

	// Ascending segment ids define the global document order the
	// cross-segment union emits.
	sort.Slice(views, func(i, j int) bool {
		return views[i].Seg.ID() < views[j].Seg.ID()
	})
	byID := make(map[model.SegmentID]int, len(views))
	for i, v := range views {
		byID[v.Seg.ID()] = i
	}

	return &Reader{e: e, gen: gen, views: views, byID: byID}, nil
}

// Close releases the snapshot's segment pins. Segments merged away
// while the snapshot was open are reclaimed once the last pin drops.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.e.mu.Lock()
	for _, v := range r.views {
		r.e.release(v.Seg.ID())
	}
	r.e.mu.Unlock()
	return nil
}

// Generation returns the manifest generation this snapshot was taken at.
func (r *Reader) Generation() uint64 { return r.gen }

// Schema returns the index schema.
func (r *Reader) Schema() *schema.Schema { return r.e.schema }

// Segments returns the pinned segment views in ascending id order.
func (r *Reader) Segments() []SegmentView { return r.views }

// DocCount returns the number of live documents in this snapshot.
func (r *Reader) DocCount() uint64 {
	var n uint64
	for _, v := range r.views {
		n += uint64(v.Seg.DocCount())
		if v.Deleted != nil {
			n -= v.Deleted.GetCardinality()
		}
	}
	return n
}

// DocCountAll returns the number of documents including tombstoned
// ones. Corpus statistics for scoring are computed over this count, so
// scores do not shift when a delete commits without a merge.
func (r *Reader) DocCountAll() uint64 {
	var n uint64
	for _, v := range r.views {
		n += uint64(v.Seg.DocCount())
	}
	return n
}

// DocFreq returns the number of documents containing (field, term),
// summed across segments and not adjusted for tombstones.
func (r *Reader) DocFreq(field, text string) uint64 {
	var n uint64
	for _, v := range r.views {
		n += uint64(v.Seg.DocFreq(field, text))
	}
	return n
}

// AvgFieldLength returns the mean token count of field across all
// documents, or 0 when the field carries no norms.
func (r *Reader) AvgFieldLength(field string) float64 {
	var total uint64
	for _, v := range r.views {
		total += v.Seg.TotalFieldLength(field)
	}
	n := r.DocCountAll()
	if n == 0 || total == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// StoredFields returns the stored values of the given document. If
// fields is non-empty, only the named fields are returned.
//
// Fetching through a segment that is not part of this snapshot is a
// structural error and yields an EmptyIndexError; fetching a document
// tombstoned in this snapshot yields ErrNotFound.
func (r *Reader) StoredFields(id model.GlobalID, fields ...string) (map[string][]byte, error) {
	i, ok := r.byID[id.Segment]
	if !ok {
		return nil, &EmptyIndexError{Op: "stored fields"}
	}
	v := r.views[i]
	if v.Deleted != nil && v.Deleted.Contains(uint32(id.Local)) {
		return nil, ErrNotFound
	}
	return v.Seg.StoredFields(id.Local, fields...)
}

// FieldLength returns the token count of field in the given document,
// or 0 when the document or field is unknown.
func (r *Reader) FieldLength(id model.GlobalID, field string) uint32 {
	i, ok := r.byID[id.Segment]
	if !ok {
		return 0
	}
	return r.views[i].Seg.FieldLength(id.Local, field)
}
