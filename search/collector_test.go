package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo/model"
)

func gid(seg, local uint32) model.GlobalID {
	return model.GlobalID{Segment: model.SegmentID(seg), Local: model.LocalID(local)}
}

func TestCollectorKeepsBestK(t *testing.T) {
	c := NewCollector(3)
	c.Add(model.Hit{ID: gid(1, 0), Score: 0.1})
	c.Add(model.Hit{ID: gid(1, 1), Score: 0.9})
	c.Add(model.Hit{ID: gid(1, 2), Score: 0.5})
	c.Add(model.Hit{ID: gid(1, 3), Score: 0.7})
	c.Add(model.Hit{ID: gid(1, 4), Score: 0.3})

	hits := c.Hits()
	require.Len(t, hits, 3)
	assert.Equal(t, gid(1, 1), hits[0].ID)
	assert.Equal(t, gid(1, 3), hits[1].ID)
	assert.Equal(t, gid(1, 2), hits[2].ID)
}

func TestCollectorTieBreaksByAscendingID(t *testing.T) {
	c := NewCollector(2)
	c.Add(model.Hit{ID: gid(2, 5), Score: 1.0})
	c.Add(model.Hit{ID: gid(1, 7), Score: 1.0})
	c.Add(model.Hit{ID: gid(1, 2), Score: 1.0})

	hits := c.Hits()
	require.Len(t, hits, 2)
	assert.Equal(t, gid(1, 2), hits[0].ID)
	assert.Equal(t, gid(1, 7), hits[1].ID)
}

func TestCollectorFewerThanK(t *testing.T) {
	c := NewCollector(10)
	c.Add(model.Hit{ID: gid(1, 0), Score: 0.2})
	c.Add(model.Hit{ID: gid(1, 1), Score: 0.4})

	hits := c.Hits()
	require.Len(t, hits, 2)
	assert.Equal(t, gid(1, 1), hits[0].ID)
}

// Splitting a stream across collectors and merging their outputs must
// yield the same top K as one sequential pass, which is what makes the
// per-segment fan-out deterministic.
func TestCollectorMergeEquivalence(t *testing.T) {
	hits := make([]model.Hit, 0, 100)
	for i := 0; i < 100; i++ {
		hits = append(hits, model.Hit{
			ID:    gid(uint32(i%4), uint32(i)),
			Score: float64((i * 37) % 50),
		})
	}

	single := NewCollector(10)
	for _, h := range hits {
		single.Add(h)
	}
	want := single.Hits()

	parts := make([]*Collector, 4)
	for i := range parts {
		parts[i] = NewCollector(10)
	}
	for i, h := range hits {
		parts[i%4].Add(h)
	}
	merged := NewCollector(10)
	for _, p := range parts {
		for _, h := range p.Hits() {
			merged.Add(h)
		}
	}

	assert.Equal(t, want, merged.Hits())
}

func BenchmarkCollectorAdd(b *testing.B) {
	c := NewCollector(10)
	for i := 0; i < b.N; i++ {
		c.Add(model.Hit{
			ID:    gid(uint32(i%8), uint32(i)),
			Score: float64((i * 2654435761) % 1000),
		})
	}
}

func TestFilter(t *testing.T) {
	f := NewFilter()
	assert.False(t, f.Contains(gid(1, 0)))

	f.Add(gid(1, 0))
	f.Add(gid(2, 5))

	assert.True(t, f.Contains(gid(1, 0)))
	assert.True(t, f.Contains(gid(2, 5)))
	assert.False(t, f.Contains(gid(1, 5)))
	assert.Equal(t, uint64(2), f.Len())
}
