package search

import (
	"container/heap"
	"sort"

	"github.com/hupe1980/lexgo/model"
)

// Collector keeps the best K hits seen so far in a bounded min-heap:
// the worst retained hit sits on top and is evicted by anything
// better. Ranking is by score descending, ties broken by ascending
// global id, which makes results deterministic across runs and across
// any partitioning of the input.
type Collector struct {
	k int
	h hitHeap
}

// NewCollector creates a collector retaining the best k hits.
func NewCollector(k int) *Collector {
	return &Collector{k: k, h: make(hitHeap, 0, min(k, 64))}
}

// Add offers one hit. Hits that cannot enter the top K are dropped in
// O(1) without allocation.
func (c *Collector) Add(h model.Hit) {
	if c.k <= 0 {
		return
	}
	if len(c.h) < c.k {
		heap.Push(&c.h, h)
		return
	}
	if ranksBelow(c.h[0], h) {
		c.h[0] = h
		heap.Fix(&c.h, 0)
	}
}

// Hits drains the collector and returns the retained hits in rank
// order. The collector is empty afterwards.
func (c *Collector) Hits() []model.Hit {
	out := []model.Hit(c.h)
	c.h = nil
	sort.Slice(out, func(i, j int) bool {
		return ranksBelow(out[j], out[i])
	})
	return out
}

// ranksBelow reports whether a ranks strictly below b: lower score, or
// equal score and larger global id.
func ranksBelow(a, b model.Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return b.ID.Less(a.ID)
}

// hitHeap is a min-heap with the worst-ranked hit on top.
type hitHeap []model.Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return ranksBelow(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(model.Hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
