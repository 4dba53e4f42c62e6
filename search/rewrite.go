package search

import (
	"sort"
	"strings"

	"github.com/hupe1980/lexgo/engine"
)

// rewrite resolves multi-term queries (Range, Prefix, Wildcard) into
// disjunctions over the concrete matching terms, collected across all
// segments of the snapshot so every segment compiles the same tree.
// Expansions beyond limit fail with a QueryTooBroadError.
func rewrite(q Query, r *engine.Reader, limit int) (Query, error) {
	switch q := q.(type) {
	case *TermQuery, *PhraseQuery, *EveryQuery:
		return q, nil

	case *AndQuery:
		kids, err := rewriteAll(q.Children, r, limit)
		if err != nil {
			return nil, err
		}
		return &AndQuery{Children: kids}, nil

	case *OrQuery:
		kids, err := rewriteAll(q.Children, r, limit)
		if err != nil {
			return nil, err
		}
		return &OrQuery{Children: kids}, nil

	case *AndNotQuery:
		pos, err := rewrite(q.Positive, r, limit)
		if err != nil {
			return nil, err
		}
		neg, err := rewrite(q.Negative, r, limit)
		if err != nil {
			return nil, err
		}
		return &AndNotQuery{Positive: pos, Negative: neg}, nil

	case *BoostQuery:
		child, err := rewrite(q.Child, r, limit)
		if err != nil {
			return nil, err
		}
		return &BoostQuery{Child: child, Factor: q.Factor}, nil

	case *RangeQuery:
		return expand(q, r, limit, q.Field, q.Lo, func(term string) (bool, bool) {
			if !q.IncLo && term == q.Lo {
				return false, true
			}
			if q.Hi != "" {
				if term > q.Hi {
					return false, false
				}
				if !q.IncHi && term == q.Hi {
					return false, false
				}
			}
			return true, true
		})

	case *PrefixQuery:
		return expand(q, r, limit, q.Field, q.Prefix, func(term string) (bool, bool) {
			ok := strings.HasPrefix(term, q.Prefix)
			return ok, ok
		})

	case *WildcardQuery:
		lit := literalPrefix(q.Pattern)
		return expand(q, r, limit, q.Field, lit, func(term string) (bool, bool) {
			if !strings.HasPrefix(term, lit) {
				return false, false
			}
			return wildcardMatch(q.Pattern, term), true
		})

	default:
		return q, nil
	}
}

func rewriteAll(qs []Query, r *engine.Reader, limit int) ([]Query, error) {
	out := make([]Query, len(qs))
	for i, q := range qs {
		rq, err := rewrite(q, r, limit)
		if err != nil {
			return nil, err
		}
		out[i] = rq
	}
	return out, nil
}

// expand scans every segment's dictionary for field starting at from,
// calling accept per term. accept returns (match, keep scanning); once
// it stops scanning the segment's contribution is complete.
func expand(q Query, r *engine.Reader, limit int, field, from string, accept func(term string) (bool, bool)) (Query, error) {
	terms := make(map[string]bool)
	var broad bool
	for _, v := range r.Segments() {
		v.Seg.TermsFrom(field, from, func(term string, _ uint32) bool {
			match, more := accept(term)
			if match {
				terms[term] = true
				if len(terms) > limit {
					broad = true
					return false
				}
			}
			return more
		})
		if broad {
			return nil, &QueryTooBroadError{Query: q.String(), Terms: len(terms), Limit: limit}
		}
	}

	sorted := make([]string, 0, len(terms))
	for t := range terms {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	kids := make([]Query, len(sorted))
	for i, t := range sorted {
		kids[i] = &TermQuery{Field: field, Text: t}
	}
	return &OrQuery{Children: kids}, nil
}

// literalPrefix returns the pattern's leading run of literal
// characters, used to bound the dictionary scan.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// wildcardMatch reports whether s matches pattern, where * matches any
// run of characters and ? exactly one. Iterative with backtracking on
// the last *.
func wildcardMatch(pattern, s string) bool {
	p := []rune(pattern)
	t := []rune(s)

	var pi, ti int
	star, mark := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == t[ti]):
			pi++
			ti++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = ti
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ti = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
