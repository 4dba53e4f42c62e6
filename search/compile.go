package search

import (
	"fmt"

	"github.com/hupe1980/lexgo/engine"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/schema"
)

// stats carries corpus-level statistics gathered once per search, so
// every segment scores against the same idf and average field length
// regardless of how documents are distributed across segments.
type stats struct {
	idf map[model.Term]float64
	avg map[string]float64
}

// gatherStats walks the rewritten query and resolves idf and average
// field length for every term it references.
func gatherStats(q Query, r *engine.Reader, sc *Scorer) *stats {
	st := &stats{
		idf: make(map[model.Term]float64),
		avg: make(map[string]float64),
	}
	n := r.DocCountAll()
	var walk func(q Query)
	record := func(field, text string) {
		key := model.Term{Field: field, Text: text}
		if _, ok := st.idf[key]; ok {
			return
		}
		st.idf[key] = sc.IDF(n, r.DocFreq(field, text))
		if _, ok := st.avg[field]; !ok {
			st.avg[field] = r.AvgFieldLength(field)
		}
	}
	walk = func(q Query) {
		switch q := q.(type) {
		case *TermQuery:
			record(q.Field, q.Text)
		case *PhraseQuery:
			for _, t := range q.Terms {
				record(q.Field, t)
			}
		case *AndQuery:
			for _, c := range q.Children {
				walk(c)
			}
		case *OrQuery:
			for _, c := range q.Children {
				walk(c)
			}
		case *AndNotQuery:
			walk(q.Positive)
			walk(q.Negative)
		case *BoostQuery:
			walk(q.Child)
		}
	}
	walk(q)
	return st
}

// compileSegment lowers a rewritten query into a matcher over one
// pinned segment view.
func compileSegment(q Query, v engine.SegmentView, sc *Scorer, st *stats, sch *schema.Schema) (matcher, error) {
	switch q := q.(type) {
	case *TermQuery:
		return compileTerm(q.Field, q.Text, v, sc, st, sch), nil

	case *PhraseQuery:
		if len(q.Terms) == 0 {
			return emptyMatcher{}, nil
		}
		if len(q.Terms) == 1 {
			return compileTerm(q.Field, q.Terms[0], v, sc, st, sch), nil
		}
		tms := make([]*termMatcher, len(q.Terms))
		for i, t := range q.Terms {
			tms[i] = compileTerm(q.Field, t, v, sc, st, sch)
		}
		return newPhraseMatcher(tms, q.Slop), nil

	case *AndQuery:
		if len(q.Children) == 0 {
			return emptyMatcher{}, nil
		}
		kids, err := compileAll(q.Children, v, sc, st, sch)
		if err != nil {
			return nil, err
		}
		return newAndMatcher(kids), nil

	case *OrQuery:
		if len(q.Children) == 0 {
			return emptyMatcher{}, nil
		}
		kids, err := compileAll(q.Children, v, sc, st, sch)
		if err != nil {
			return nil, err
		}
		return newOrMatcher(kids), nil

	case *AndNotQuery:
		pos, err := compileSegment(q.Positive, v, sc, st, sch)
		if err != nil {
			return nil, err
		}
		neg, err := compileSegment(q.Negative, v, sc, st, sch)
		if err != nil {
			return nil, err
		}
		return newAndNotMatcher(pos, neg), nil

	case *EveryQuery:
		return newEveryMatcher(v.Seg.DocCount(), v.Deleted), nil

	case *BoostQuery:
		child, err := compileSegment(q.Child, v, sc, st, sch)
		if err != nil {
			return nil, err
		}
		return &boostMatcher{child: child, factor: q.Factor}, nil

	default:
		return nil, fmt.Errorf("query type %T does not compile to a matcher", q)
	}
}

func compileAll(qs []Query, v engine.SegmentView, sc *Scorer, st *stats, sch *schema.Schema) ([]matcher, error) {
	out := make([]matcher, len(qs))
	for i, q := range qs {
		m, err := compileSegment(q, v, sc, st, sch)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func compileTerm(field, text string, v engine.SegmentView, sc *Scorer, st *stats, sch *schema.Schema) *termMatcher {
	boost := 1.0
	if f, ok := sch.Field(field); ok {
		boost = f.EffectiveBoost()
	}
	return &termMatcher{
		it:    v.Seg.Postings(field, text, v.Deleted),
		seg:   v.Seg,
		field: field,
		idf:   st.idf[model.Term{Field: field, Text: text}],
		boost: boost,
		avg:   st.avg[field],
		sc:    sc,
	}
}
