package segment

import (
	"bytes"
	"container/heap"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/model"
)

const deletedSentinel = ^uint32(0)

// MergeResult describes how a merge renumbered its inputs. The caller
// uses it to translate tombstones that landed on a source after the
// merge started onto the merged segment before publishing it.
type MergeResult struct {
	// DocCount is the number of surviving documents in the merged segment.
	DocCount uint32

	captured []*roaring.Bitmap
	newIDs   [][]uint32
}

// CapturedDeleted returns the deletion bitmap of source src as pinned at
// the start of the merge. May be nil.
func (r *MergeResult) CapturedDeleted(src int) *roaring.Bitmap {
	return r.captured[src]
}

// Remap translates a source-local doc id to its merged-segment local id.
// It returns false for documents the merge dropped.
func (r *MergeResult) Remap(src int, local model.LocalID) (model.LocalID, bool) {
	table := r.newIDs[src]
	if uint32(local) >= uint32(len(table)) || table[local] == deletedSentinel {
		return 0, false
	}
	return model.LocalID(table[local]), true
}

// Merge consolidates the sources into one new segment written to w.
//
// Term dictionaries are k-way merged with a priority queue of per-source
// cursors keyed by (field, term); postings for identical terms are
// unioned. Documents tombstoned in their source are dropped; survivors
// are renumbered to a dense local id space preserving relative order.
//
// Merge reads only immutable inputs and never mutates its sources, so it
// is retryable from scratch and safe to cancel by discarding the output.
func Merge(w io.Writer, c codec.Codec, sources []*Segment) (*MergeResult, error) {
	// Pin each source's tombstones once so a concurrent delete commit
	// cannot shift the renumbering mid-merge.
	deleted := make([]*roaring.Bitmap, len(sources))
	for i, s := range sources {
		deleted[i] = s.Deleted()
	}

	// Renumbering tables: newID[src][local], dense over survivors.
	newIDs := make([][]uint32, len(sources))
	var total uint32
	for i, s := range sources {
		table := make([]uint32, s.docCount)
		for local := uint32(0); local < s.docCount; local++ {
			if deleted[i] != nil && deleted[i].Contains(local) {
				table[local] = deletedSentinel
				continue
			}
			table[local] = total
			total++
		}
		newIDs[i] = table
	}

	// Union of field tables, sorted.
	fieldSet := make(map[string]bool)
	for _, s := range sources {
		for _, f := range s.fields {
			fieldSet[f] = true
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		fieldIdx[f] = i
	}

	// Stored records and norms for surviving documents, in new id order.
	storedDocs := make([][]byte, 0, total)
	var buf bytes.Buffer
	for i, s := range sources {
		for local := uint32(0); local < s.docCount; local++ {
			if newIDs[i][local] == deletedSentinel {
				continue
			}
			rec, err := decodeStoredDoc(s.blobName, s.stored, s.storedOffsets[local], s.fields, nil)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(rec))
			for name := range rec {
				names = append(names, name)
			}
			sort.Strings(names)
			sfs := make([]StoredField, 0, len(names))
			for _, name := range names {
				sfs = append(sfs, StoredField{Field: name, Value: rec[name]})
			}
			buf.Reset()
			encodeStoredDoc(&buf, fieldIdx, sfs)
			storedDocs = append(storedDocs, append([]byte(nil), buf.Bytes()...))
		}
	}

	norms := make([][]uint32, len(fields))
	for fi, field := range fields {
		hasNorms := false
		for _, s := range sources {
			if si, ok := s.fieldIdx[field]; ok && s.norms[si] != nil {
				hasNorms = true
				break
			}
		}
		if !hasNorms {
			continue
		}
		lengths := make([]uint32, 0, total)
		for i, s := range sources {
			for local := uint32(0); local < s.docCount; local++ {
				if newIDs[i][local] == deletedSentinel {
					continue
				}
				lengths = append(lengths, s.FieldLength(model.LocalID(local), field))
			}
		}
		norms[fi] = lengths
	}

	src := &mergeTermSource{
		sources:  sources,
		deleted:  deleted,
		newIDs:   newIDs,
		fieldIdx: fieldIdx,
	}
	for i, s := range sources {
		if s.dict.len() == 0 {
			continue
		}
		e := s.dict.at(0)
		src.heap = append(src.heap, &mergeCursor{
			src:   i,
			di:    0,
			field: s.fields[e.field],
			text:  e.text,
		})
	}
	heap.Init(&src.heap)

	if _, err := writeSegment(w, c, fields, total, src, storedDocs, norms); err != nil {
		return nil, err
	}
	return &MergeResult{DocCount: total, captured: deleted, newIDs: newIDs}, nil
}

// mergeCursor tracks one source's position in its term dictionary.
type mergeCursor struct {
	src   int
	di    int
	field string
	text  string
}

type cursorHeap []*mergeCursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	if h[i].field != h[j].field {
		return h[i].field < h[j].field
	}
	if h[i].text != h[j].text {
		return h[i].text < h[j].text
	}
	return h[i].src < h[j].src
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*mergeCursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

type mergeTermSource struct {
	sources  []*Segment
	deleted  []*roaring.Bitmap
	newIDs   [][]uint32
	fieldIdx map[string]int
	heap     cursorHeap
}

func (m *mergeTermSource) next() (termEntryData, bool, error) {
	for len(m.heap) > 0 {
		top := m.heap[0]
		field, text := top.field, top.text

		// Pop every cursor positioned at the same (field, term).
		var popped []*mergeCursor
		for len(m.heap) > 0 && m.heap[0].field == field && m.heap[0].text == text {
			popped = append(popped, heap.Pop(&m.heap).(*mergeCursor))
		}
		// Popped cursors arrive in ascending src order (heap tie-break),
		// which keeps the unioned postings sorted by new local id.

		var postings []model.Posting
		for _, cur := range popped {
			s := m.sources[cur.src]
			e := s.dict.at(cur.di)
			block := s.postings[e.off : e.off+e.length]
			it := newPostingsIterator(s.blobName, block, m.deleted[cur.src])
			for it.Next() {
				newID := m.newIDs[cur.src][it.Doc()]
				postings = append(postings, model.Posting{
					Local:     model.LocalID(newID),
					Freq:      it.Freq(),
					Positions: it.Positions(),
				})
			}
			if err := it.Err(); err != nil {
				return termEntryData{}, false, err
			}

			// Advance the cursor and push it back if terms remain.
			if cur.di+1 < s.dict.len() {
				ne := s.dict.at(cur.di + 1)
				cur.di++
				cur.field = s.fields[ne.field]
				cur.text = ne.text
				heap.Push(&m.heap, cur)
			}
		}

		// Terms whose every posting was tombstoned vanish entirely.
		if len(postings) == 0 {
			continue
		}
		return termEntryData{
			field:    m.fieldIdx[field],
			text:     text,
			postings: postings,
		}, true, nil
	}
	return termEntryData{}, false, nil
}
