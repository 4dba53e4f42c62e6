package search

import (
	"container/heap"

	"github.com/hupe1980/lexgo/model"
)

// andMatcher intersects its children with a leapfrog join: all cursors
// repeatedly skip to the maximum of their current positions until they
// agree on a document.
type andMatcher struct {
	kids []matcher
	cur  model.LocalID
	live bool
	done bool
}

func newAndMatcher(kids []matcher) *andMatcher {
	return &andMatcher{kids: kids}
}

func (m *andMatcher) doc() model.LocalID { return m.cur }

func (m *andMatcher) next() bool {
	if m.done {
		return false
	}
	if !m.live {
		for _, k := range m.kids {
			if !k.next() {
				m.done = true
				return false
			}
		}
		m.live = true
		return m.align()
	}
	if !m.kids[0].next() {
		m.done = true
		return false
	}
	return m.align()
}

func (m *andMatcher) skipTo(target model.LocalID) bool {
	if m.done {
		return false
	}
	if m.live && m.cur >= target {
		return true
	}
	for _, k := range m.kids {
		if !k.skipTo(target) {
			m.done = true
			return false
		}
	}
	m.live = true
	return m.align()
}

func (m *andMatcher) align() bool {
	for {
		target := m.kids[0].doc()
		for _, k := range m.kids {
			if k.doc() > target {
				target = k.doc()
			}
		}
		aligned := true
		for _, k := range m.kids {
			if k.doc() < target {
				if !k.skipTo(target) {
					m.done = true
					return false
				}
				aligned = false
			}
		}
		if aligned {
			m.cur = target
			return true
		}
	}
}

func (m *andMatcher) score() float64 {
	var s float64
	for _, k := range m.kids {
		s += k.score()
	}
	return s
}

func (m *andMatcher) err() error {
	for _, k := range m.kids {
		if e := k.err(); e != nil {
			return e
		}
	}
	return nil
}

// orMatcher unions its children with a min-heap keyed by current doc.
// A document's score is the sum over the children positioned on it.
type orMatcher struct {
	kids     []matcher
	h        matcherHeap
	cur      model.LocalID
	started  bool
	firstErr error
}

func newOrMatcher(kids []matcher) *orMatcher {
	return &orMatcher{kids: kids}
}

func (m *orMatcher) doc() model.LocalID { return m.cur }

func (m *orMatcher) next() bool {
	if m.firstErr != nil {
		return false
	}
	if !m.started {
		m.started = true
		for _, k := range m.kids {
			if k.next() {
				heap.Push(&m.h, k)
			} else if e := k.err(); e != nil {
				m.firstErr = e
				return false
			}
		}
	} else {
		for m.h.Len() > 0 && m.h[0].doc() == m.cur {
			k := heap.Pop(&m.h).(matcher)
			if k.next() {
				heap.Push(&m.h, k)
			} else if e := k.err(); e != nil {
				m.firstErr = e
				return false
			}
		}
	}
	if m.h.Len() == 0 {
		return false
	}
	m.cur = m.h[0].doc()
	return true
}

func (m *orMatcher) skipTo(target model.LocalID) bool {
	if m.firstErr != nil {
		return false
	}
	if !m.started {
		m.started = true
		for _, k := range m.kids {
			if k.skipTo(target) {
				heap.Push(&m.h, k)
			} else if e := k.err(); e != nil {
				m.firstErr = e
				return false
			}
		}
	} else {
		if m.h.Len() > 0 && m.cur >= target {
			return true
		}
		for m.h.Len() > 0 && m.h[0].doc() < target {
			k := heap.Pop(&m.h).(matcher)
			if k.skipTo(target) {
				heap.Push(&m.h, k)
			} else if e := k.err(); e != nil {
				m.firstErr = e
				return false
			}
		}
	}
	if m.h.Len() == 0 {
		return false
	}
	m.cur = m.h[0].doc()
	return true
}

func (m *orMatcher) score() float64 {
	var s float64
	for _, k := range m.h {
		if k.doc() == m.cur {
			s += k.score()
		}
	}
	return s
}

func (m *orMatcher) err() error { return m.firstErr }

type matcherHeap []matcher

func (h matcherHeap) Len() int           { return len(h) }
func (h matcherHeap) Less(i, j int) bool { return h[i].doc() < h[j].doc() }
func (h matcherHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *matcherHeap) Push(x any)        { *h = append(*h, x.(matcher)) }
func (h *matcherHeap) Pop() any {
	old := *h
	n := len(old)
	k := old[n-1]
	*h = old[:n-1]
	return k
}

// andNotMatcher passes through its positive child, dropping documents
// the negative child also matches. The negative side never scores.
type andNotMatcher struct {
	pos     matcher
	neg     matcher
	negDone bool
}

func newAndNotMatcher(pos, neg matcher) *andNotMatcher {
	return &andNotMatcher{pos: pos, neg: neg}
}

func (m *andNotMatcher) doc() model.LocalID { return m.pos.doc() }

func (m *andNotMatcher) next() bool {
	for m.pos.next() {
		if !m.excluded(m.pos.doc()) {
			return true
		}
	}
	return false
}

func (m *andNotMatcher) skipTo(target model.LocalID) bool {
	if !m.pos.skipTo(target) {
		return false
	}
	if !m.excluded(m.pos.doc()) {
		return true
	}
	return m.next()
}

func (m *andNotMatcher) excluded(d model.LocalID) bool {
	if m.negDone {
		return false
	}
	if !m.neg.skipTo(d) {
		m.negDone = true
		return false
	}
	return m.neg.doc() == d
}

func (m *andNotMatcher) score() float64 { return m.pos.score() }

func (m *andNotMatcher) err() error {
	if e := m.pos.err(); e != nil {
		return e
	}
	return m.neg.err()
}
