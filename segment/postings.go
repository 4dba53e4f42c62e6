package segment

import (
	"bytes"
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/lexgo/model"
)

// Postings block layout, per term:
//
//	docCount uvarint
//	per document (ascending local id):
//	  delta(local id) uvarint   (first document: the id itself)
//	  freq uvarint
//	  freq position deltas, uvarint each (first: the position itself)
//
// Delta coding relies on the invariant that postings are sorted by
// ascending local id within a segment.

func appendUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func encodePostings(buf *bytes.Buffer, ps []model.Posting) {
	appendUvarint(buf, uint64(len(ps)))
	var prevDoc uint64
	for i, p := range ps {
		doc := uint64(p.Local)
		if i == 0 {
			appendUvarint(buf, doc)
		} else {
			appendUvarint(buf, doc-prevDoc)
		}
		prevDoc = doc

		appendUvarint(buf, uint64(p.Freq))
		var prevPos uint64
		for j, pos := range p.Positions {
			v := uint64(pos)
			if j == 0 {
				appendUvarint(buf, v)
			} else {
				appendUvarint(buf, v-prevPos)
			}
			prevPos = v
		}
	}
}

// sliceReader decodes uvarints from a byte slice, remembering the first
// decode failure instead of returning an error at every call site.
type sliceReader struct {
	data []byte
	pos  int
	bad  bool
}

func (r *sliceReader) uvarint() uint64 {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		r.bad = true
		return 0
	}
	r.pos += n
	return v
}

func (r *sliceReader) remaining() int {
	return len(r.data) - r.pos
}

// PostingsIterator lazily decodes one term's postings block, skipping
// documents flagged in the deletion bitmap.
//
// The zero iterator is exhausted; see emptyPostings.
type PostingsIterator struct {
	r        sliceReader
	left     uint32
	deleted  *roaring.Bitmap
	blobName string

	doc      model.LocalID
	freq     uint32
	posStart int
	valid    bool
	err      error
}

func newPostingsIterator(blobName string, block []byte, deleted *roaring.Bitmap) *PostingsIterator {
	it := &PostingsIterator{
		r:        sliceReader{data: block},
		deleted:  deleted,
		blobName: blobName,
	}
	it.left = uint32(it.r.uvarint())
	if it.r.bad {
		it.err = corruptf(blobName, "invalid postings block header")
		it.left = 0
	}
	return it
}

// emptyPostings is an exhausted iterator for terms not in the dictionary.
func emptyPostings() *PostingsIterator {
	return &PostingsIterator{}
}

// Next advances to the next live document. It returns false when the
// block is exhausted or a decode error occurred (see Err).
func (it *PostingsIterator) Next() bool {
	for it.left > 0 {
		it.left--

		delta := it.r.uvarint()
		if it.valid {
			it.doc += model.LocalID(delta)
		} else {
			it.doc = model.LocalID(delta)
			it.valid = true
		}
		it.freq = uint32(it.r.uvarint())
		it.posStart = it.r.pos
		// Skip over the position deltas; Positions decodes on demand.
		for i := uint32(0); i < it.freq; i++ {
			it.r.uvarint()
		}
		if it.r.bad {
			it.err = corruptf(it.blobName, "invalid postings block body")
			it.left = 0
			it.valid = false
			return false
		}
		if it.deleted != nil && it.deleted.Contains(uint32(it.doc)) {
			continue
		}
		return true
	}
	it.valid = false
	return false
}

// SkipTo advances to the first live document with id >= target.
// It is a no-op if the iterator is already at or past target.
func (it *PostingsIterator) SkipTo(target model.LocalID) bool {
	if it.valid && it.doc >= target {
		return true
	}
	for it.Next() {
		if it.doc >= target {
			return true
		}
	}
	return false
}

// Doc returns the current local document id. Only valid after a
// successful Next or SkipTo.
func (it *PostingsIterator) Doc() model.LocalID {
	return it.doc
}

// Freq returns the term frequency at the current document.
func (it *PostingsIterator) Freq() uint32 {
	return it.freq
}

// Positions decodes and returns the term positions at the current
// document, ascending.
func (it *PostingsIterator) Positions() []uint32 {
	r := sliceReader{data: it.r.data, pos: it.posStart}
	out := make([]uint32, 0, it.freq)
	var prev uint64
	for i := uint32(0); i < it.freq; i++ {
		v := r.uvarint()
		if i == 0 {
			prev = v
		} else {
			prev += v
		}
		out = append(out, uint32(prev))
	}
	if r.bad {
		return nil
	}
	return out
}

// Err returns the first decode error encountered, if any.
func (it *PostingsIterator) Err() error {
	return it.err
}
