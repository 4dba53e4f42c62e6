package search

import (
	"sort"

	"github.com/hupe1980/lexgo/model"
)

// phraseMatcher intersects its term matchers like an And, then filters
// each candidate by positions: the terms must occur in order, with
// consecutive positions at most slop+1 apart. Position decoding only
// happens for documents that already contain every term.
type phraseMatcher struct {
	and  *andMatcher
	tms  []*termMatcher
	slop int
}

func newPhraseMatcher(tms []*termMatcher, slop int) *phraseMatcher {
	kids := make([]matcher, len(tms))
	for i, tm := range tms {
		kids[i] = tm
	}
	return &phraseMatcher{and: newAndMatcher(kids), tms: tms, slop: slop}
}

func (m *phraseMatcher) doc() model.LocalID { return m.and.doc() }

func (m *phraseMatcher) next() bool {
	for m.and.next() {
		if m.phraseAt() {
			return true
		}
	}
	return false
}

func (m *phraseMatcher) skipTo(target model.LocalID) bool {
	if !m.and.skipTo(target) {
		return false
	}
	if m.phraseAt() {
		return true
	}
	return m.next()
}

func (m *phraseMatcher) phraseAt() bool {
	lists := make([][]uint32, len(m.tms))
	for i, tm := range m.tms {
		lists[i] = tm.positions()
		if len(lists[i]) == 0 {
			return false
		}
	}
	maxGap := uint32(m.slop) + 1
	for _, start := range lists[0] {
		prev := start
		ok := true
		for i := 1; i < len(lists); i++ {
			pos, found := firstWithin(lists[i], prev, maxGap)
			if !found {
				ok = false
				break
			}
			prev = pos
		}
		if ok {
			return true
		}
	}
	return false
}

// firstWithin returns the smallest position > prev with a gap of at
// most maxGap, relying on positions being sorted ascending.
func firstWithin(ps []uint32, prev, maxGap uint32) (uint32, bool) {
	i := sort.Search(len(ps), func(i int) bool { return ps[i] > prev })
	if i == len(ps) || ps[i]-prev > maxGap {
		return 0, false
	}
	return ps[i], true
}

func (m *phraseMatcher) score() float64 { return m.and.score() }

func (m *phraseMatcher) err() error { return m.and.err() }
