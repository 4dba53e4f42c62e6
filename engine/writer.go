package engine

import (
	"context"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/lexgo/manifest"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/schema"
	"github.com/hupe1980/lexgo/segment"
)

// Document is the writer's input: field name to raw text value. How
// each field is treated (indexed, stored, scored) is decided by the
// schema, not the document.
type Document map[string]string

// Writer buffers documents and deletions and makes them durable in one
// atomic commit. It holds the engine's exclusive writer lock from
// acquisition until Commit or Cancel.
//
// Nothing a writer buffers is visible to readers before Commit returns;
// a crash before the commit's manifest swap loses the whole batch and
// nothing else.
type Writer struct {
	e       *Engine
	builder *segment.Builder
	deletes []model.Term
	done    bool
}

// Writer acquires the exclusive writer lock and returns a new writer.
// It fails fast with a LockError when another writer is active.
func (e *Engine) Writer() (*Writer, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if !e.writerHeld.CompareAndSwap(false, true) {
		return nil, &LockError{Name: "writer"}
	}
	return &Writer{e: e, builder: segment.NewBuilder(e.codec)}, nil
}

// AddDocument analyzes and buffers one document.
//
// A document that violates the schema is rejected with a
// schema.MismatchError; the batch and previously added documents are
// unaffected.
func (w *Writer) AddDocument(doc Document) error {
	if w.done {
		return ErrWriterDone
	}

	present := make(map[string]bool, len(doc))
	for name := range doc {
		present[name] = true
	}
	if err := w.e.schema.Validate(present); err != nil {
		return err
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	var indexed []segment.IndexedField
	var stored []segment.StoredField
	for _, name := range names {
		f, _ := w.e.schema.Field(name)
		value := doc[name]

		if f.Indexed {
			tokens := w.e.analyzer.Analyze(name, value)
			terms := make(map[string][]uint32, len(tokens))
			for _, t := range tokens {
				terms[t.Term] = append(terms[t.Term], t.Position)
			}
			indexed = append(indexed, segment.IndexedField{
				Field:  name,
				Terms:  terms,
				Length: uint32(len(tokens)),
				Scored: f.Scored,
			})
		}
		if f.Stored {
			stored = append(stored, segment.StoredField{Field: name, Value: []byte(value)})
		}
	}

	w.builder.Add(segment.Document{Indexed: indexed, Stored: stored})
	return nil
}

// DeleteByTerm queues the deletion of every committed document whose
// field contains the exact term text. The deletion is applied at Commit
// against the segments visible then; documents added in the same batch
// are not affected.
func (w *Writer) DeleteByTerm(field, text string) error {
	if w.done {
		return ErrWriterDone
	}
	f, ok := w.e.schema.Field(field)
	if !ok {
		return schema.NewMismatchError(field, "field not declared in schema")
	}
	if !f.Indexed {
		return schema.NewMismatchError(field, "cannot delete by term on a field that is not indexed")
	}
	w.deletes = append(w.deletes, model.Term{Field: field, Text: text})
	return nil
}

// UpdateDocument deletes the committed documents matching the new
// document's value in the unique field, then buffers the new document.
// The unique field's value should analyze to a single term; every term
// it produces is used for the deletion.
func (w *Writer) UpdateDocument(unique string, doc Document) error {
	if w.done {
		return ErrWriterDone
	}
	value, ok := doc[unique]
	if !ok {
		return schema.NewMismatchError(unique, "unique field missing from document")
	}
	tokens := w.e.analyzer.Analyze(unique, value)
	if len(tokens) == 0 {
		return schema.NewMismatchError(unique, "unique field value produced no terms")
	}
	for _, t := range tokens {
		if err := w.DeleteByTerm(unique, t.Term); err != nil {
			return err
		}
	}
	return w.AddDocument(doc)
}

// BufferedDocs returns the number of documents buffered so far.
func (w *Writer) BufferedDocs() int {
	return int(w.builder.DocCount())
}

// Commit makes the buffered batch durable and visible in one atomic
// manifest swap: the new segment blob and all tombstone sidecars are
// written first, and only the final repoint of the manifest publishes
// them. On error the writer stays usable and Commit can be retried.
func (w *Writer) Commit(ctx context.Context) error {
	if w.done {
		return ErrWriterDone
	}
	e := w.e
	added := w.builder.DocCount()

	var newSeg *segment.Segment
	if added > 0 {
		id := e.allocSegmentID()
		name := segment.BlobName(id)

		wb, err := e.store.Create(ctx, name)
		if err != nil {
			return err
		}
		if _, err := w.builder.WriteTo(wb); err != nil {
			wb.Close()
			return err
		}
		if err := wb.Sync(); err != nil {
			wb.Close()
			return err
		}
		if err := wb.Close(); err != nil {
			return err
		}

		newSeg, err = segment.Open(ctx, e.store, id, 0)
		if err != nil {
			return err
		}
	}

	if newSeg == nil && len(w.deletes) == 0 {
		w.finish()
		return nil
	}

	e.publishMu.Lock()
	staged, err := e.collectDeletes(w.deletes)
	if err != nil {
		e.publishMu.Unlock()
		return err
	}

	e.mu.Lock()
	m := e.current.Clone()
	m.NextSegmentID = e.nextID
	e.mu.Unlock()
	if newSeg != nil {
		m.Segments = append(m.Segments, manifest.SegmentInfo{
			ID:       newSeg.ID(),
			DocCount: newSeg.DocCount(),
			Size:     newSeg.Size(),
		})
	}

	// Sidecars are staged under the generation about to be published.
	// Until CURRENT repoints, nothing references them: a failure from
	// here on leaves the prior generation fully intact.
	delGen := m.Generation + 1
	var replaced []string
	for _, st := range staged {
		if err := segment.SaveTombstones(ctx, e.store, st.seg.ID(), delGen, st.merged); err != nil {
			e.discardStaged(staged, delGen)
			e.publishMu.Unlock()
			return err
		}
	}
	for i, info := range m.Segments {
		for _, st := range staged {
			if info.ID == st.seg.ID() {
				if info.DelGen != 0 {
					replaced = append(replaced, segment.TombstoneName(info.ID, info.DelGen))
				}
				m.Segments[i].DelGen = delGen
			}
		}
	}

	if err := e.manifests.Save(ctx, m); err != nil {
		e.discardStaged(staged, delGen)
		e.publishMu.Unlock()
		return err
	}

	// Published. Only now do the staged deletes become visible.
	var deleted uint64
	for _, st := range staged {
		st.seg.SetDeleted(st.merged)
		deleted += st.count
	}

	e.mu.Lock()
	e.current = m
	if newSeg != nil {
		e.segments[newSeg.ID()] = &segmentRef{seg: newSeg, refs: 1}
	}
	e.mu.Unlock()
	e.publishMu.Unlock()

	for _, name := range replaced {
		if err := e.store.Delete(ctx, name); err != nil {
			e.logger.Warn("replaced tombstone sidecar not removed", "blob", name, "error", err)
		}
	}

	e.logger.Info("commit",
		"generation", m.Generation,
		"docs_added", added,
		"docs_deleted", deleted,
		"segments", len(m.Segments))

	w.finish()
	e.maybeMerge()
	return nil
}

// Cancel discards the buffered batch and releases the writer lock.
func (w *Writer) Cancel() {
	if w.done {
		return
	}
	w.finish()
}

func (w *Writer) finish() {
	w.done = true
	w.builder = nil
	w.deletes = nil
	w.e.writerHeld.Store(false)
}

// stagedDeletes is one segment's grown deletion bitmap, computed for a
// commit but not yet durable or visible.
type stagedDeletes struct {
	seg    *segment.Segment
	merged *roaring.Bitmap
	count  uint64
}

// collectDeletes resolves the queued terms against the live segments and
// returns the grown bitmap per affected segment. It writes nothing and
// mutates nothing: visibility is the caller's job, after publication.
// Must run under publishMu so a concurrent merge publish cannot drop the
// sources these bitmaps target.
func (e *Engine) collectDeletes(terms []model.Term) ([]stagedDeletes, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	refs := make([]*segmentRef, 0, len(e.current.Segments))
	for _, info := range e.current.Segments {
		if ref := e.segments[info.ID]; ref != nil {
			refs = append(refs, ref)
		}
	}
	e.mu.Unlock()

	var staged []stagedDeletes
	for _, ref := range refs {
		seg := ref.seg
		matches := roaring.New()
		for _, t := range terms {
			it := seg.Postings(t.Field, t.Text, seg.Deleted())
			for it.Next() {
				matches.Add(uint32(it.Doc()))
			}
			if err := it.Err(); err != nil {
				return nil, err
			}
		}
		if matches.IsEmpty() {
			continue
		}
		merged := matches
		if cur := seg.Deleted(); cur != nil {
			merged = roaring.Or(cur, matches)
		}
		staged = append(staged, stagedDeletes{
			seg:    seg,
			merged: merged,
			count:  matches.GetCardinality(),
		})
	}
	return staged, nil
}

// discardStaged removes sidecars staged for a publish that failed.
// Best effort: an orphaned sidecar is never referenced by any manifest
// and is reclaimed with its segment.
func (e *Engine) discardStaged(staged []stagedDeletes, delGen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, st := range staged {
		name := segment.TombstoneName(st.seg.ID(), delGen)
		if err := e.store.Delete(ctx, name); err != nil {
			e.logger.Warn("staged tombstone sidecar not discarded", "blob", name, "error", err)
		}
	}
}
