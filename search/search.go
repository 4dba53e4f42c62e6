package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lexgo/engine"
	"github.com/hupe1980/lexgo/model"
)

const (
	// DefaultLimit is the number of hits returned when no limit is set.
	DefaultLimit = 10

	// DefaultMaxExpansion bounds how many terms a Range, Prefix or
	// Wildcard query may expand to before it is rejected as too broad.
	DefaultMaxExpansion = 1024
)

type options struct {
	limit        int
	maxExpansion int
	scorer       *Scorer
	filter       *Filter
	loadStored   bool
	storedFields []string
}

// Option configures a single search.
type Option func(*options)

// WithLimit sets the number of hits to return.
func WithLimit(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.limit = k
		}
	}
}

// WithMaxExpansion sets the multi-term expansion ceiling.
func WithMaxExpansion(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxExpansion = n
		}
	}
}

// WithScorer overrides the default BM25 parameters.
func WithScorer(s *Scorer) Option {
	return func(o *options) {
		if s != nil {
			o.scorer = s
		}
	}
}

// WithFilter restricts the search to the filter's document set.
func WithFilter(f *Filter) Option {
	return func(o *options) {
		o.filter = f
	}
}

// WithStoredFields loads stored field values into each hit. Without
// arguments all stored fields are loaded.
func WithStoredFields(fields ...string) Option {
	return func(o *options) {
		o.loadStored = true
		o.storedFields = fields
	}
}

// Search runs the query against a reader snapshot and returns the top
// hits in rank order (score descending, ties by ascending global id).
//
// Each segment is matched concurrently with its own bounded collector;
// the partial results are then merged through one final collector,
// which yields the same top K as a single sequential pass. An index
// with no matching documents returns an empty slice, not an error.
func Search(ctx context.Context, r *engine.Reader, q Query, opts ...Option) ([]model.Hit, error) {
	o := options{
		limit:        DefaultLimit,
		maxExpansion: DefaultMaxExpansion,
		scorer:       NewScorer(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	views := r.Segments()
	if len(views) == 0 {
		return nil, nil
	}

	rewritten, err := rewrite(q, r, o.maxExpansion)
	if err != nil {
		return nil, err
	}
	st := gatherStats(rewritten, r, o.scorer)

	perSeg := make([][]model.Hit, len(views))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range views {
		i, v := i, v
		g.Go(func() error {
			m, err := compileSegment(rewritten, v, o.scorer, st, r.Schema())
			if err != nil {
				return err
			}
			col := NewCollector(o.limit)
			segID := v.Seg.ID()
			var seen int
			for m.next() {
				seen++
				if seen&0x3ff == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				id := model.GlobalID{Segment: segID, Local: m.doc()}
				if o.filter != nil && !o.filter.Contains(id) {
					continue
				}
				col.Add(model.Hit{ID: id, Score: m.score()})
			}
			if err := m.err(); err != nil {
				return err
			}
			perSeg[i] = col.Hits()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	final := NewCollector(o.limit)
	for _, hits := range perSeg {
		for _, h := range hits {
			final.Add(h)
		}
	}
	hits := final.Hits()

	if o.loadStored {
		for i := range hits {
			stored, err := r.StoredFields(hits[i].ID, o.storedFields...)
			if err != nil {
				return nil, err
			}
			hits[i].Stored = stored
		}
	}
	return hits, nil
}
