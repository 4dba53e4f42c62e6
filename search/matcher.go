package search

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/segment"
)

// matcher is a lazy cursor over one segment's matching documents in
// ascending local id order. doc is only valid after a successful next
// or skipTo; score refers to the current document.
type matcher interface {
	doc() model.LocalID
	next() bool
	skipTo(target model.LocalID) bool
	score() float64
	err() error
}

// termMatcher streams one term's postings and scores each document
// with BM25 weighted by the field boost.
type termMatcher struct {
	it    *segment.PostingsIterator
	seg   *segment.Segment
	field string
	idf   float64
	boost float64
	avg   float64
	sc    *Scorer
}

func (m *termMatcher) doc() model.LocalID { return m.it.Doc() }

func (m *termMatcher) next() bool { return m.it.Next() }

func (m *termMatcher) skipTo(target model.LocalID) bool { return m.it.SkipTo(target) }

func (m *termMatcher) score() float64 {
	tf := float64(m.it.Freq())
	dl := float64(m.seg.FieldLength(m.it.Doc(), m.field))
	return m.boost * m.idf * m.sc.tfWeight(tf, dl, m.avg)
}

func (m *termMatcher) positions() []uint32 { return m.it.Positions() }

func (m *termMatcher) err() error { return m.it.Err() }

// everyMatcher walks the whole local id space, skipping tombstones.
type everyMatcher struct {
	docCount uint32
	deleted  *roaring.Bitmap
	cur      int64
}

func newEveryMatcher(docCount uint32, deleted *roaring.Bitmap) *everyMatcher {
	return &everyMatcher{docCount: docCount, deleted: deleted, cur: -1}
}

func (m *everyMatcher) doc() model.LocalID { return model.LocalID(m.cur) }

func (m *everyMatcher) next() bool {
	for {
		m.cur++
		if m.cur >= int64(m.docCount) {
			return false
		}
		if m.deleted != nil && m.deleted.Contains(uint32(m.cur)) {
			continue
		}
		return true
	}
}

func (m *everyMatcher) skipTo(target model.LocalID) bool {
	if int64(target) <= m.cur {
		return m.cur < int64(m.docCount)
	}
	m.cur = int64(target) - 1
	return m.next()
}

func (m *everyMatcher) score() float64 { return 1 }

func (m *everyMatcher) err() error { return nil }

// emptyMatcher matches nothing.
type emptyMatcher struct{}

func (emptyMatcher) doc() model.LocalID        { return 0 }
func (emptyMatcher) next() bool                { return false }
func (emptyMatcher) skipTo(model.LocalID) bool { return false }
func (emptyMatcher) score() float64            { return 0 }
func (emptyMatcher) err() error                { return nil }

// boostMatcher multiplies the child's scores.
type boostMatcher struct {
	child  matcher
	factor float64
}

func (m *boostMatcher) doc() model.LocalID          { return m.child.doc() }
func (m *boostMatcher) next() bool                  { return m.child.next() }
func (m *boostMatcher) skipTo(t model.LocalID) bool { return m.child.skipTo(t) }
func (m *boostMatcher) score() float64              { return m.factor * m.child.score() }
func (m *boostMatcher) err() error                  { return m.child.err() }
