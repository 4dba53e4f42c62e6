package search

import (
	"fmt"
	"strings"
)

// Query is a node in the query tree. Queries are plain values; building
// one performs no index access until Search compiles it.
type Query interface {
	String() string
}

// TermQuery matches documents containing the exact term in a field.
type TermQuery struct {
	Field string
	Text  string
}

// NewTerm creates a single-term query.
func NewTerm(field, text string) *TermQuery {
	return &TermQuery{Field: field, Text: text}
}

func (q *TermQuery) String() string {
	return fmt.Sprintf("%s:%s", q.Field, q.Text)
}

// PhraseQuery matches documents where the terms occur in order. With
// Slop 0 the terms must be adjacent; a positive Slop allows up to that
// many extra positions between consecutive terms.
type PhraseQuery struct {
	Field string
	Terms []string
	Slop  int
}

// NewPhrase creates an exact-adjacency phrase query.
func NewPhrase(field string, terms ...string) *PhraseQuery {
	return &PhraseQuery{Field: field, Terms: terms}
}

func (q *PhraseQuery) String() string {
	return fmt.Sprintf("%s:%q", q.Field, strings.Join(q.Terms, " "))
}

// AndQuery matches documents matching every child.
type AndQuery struct {
	Children []Query
}

// NewAnd creates a conjunction.
func NewAnd(children ...Query) *AndQuery {
	return &AndQuery{Children: children}
}

func (q *AndQuery) String() string {
	return combine("AND", q.Children)
}

// OrQuery matches documents matching at least one child. A document's
// score is the sum of the scores of the children that match it.
type OrQuery struct {
	Children []Query
}

// NewOr creates a disjunction.
func NewOr(children ...Query) *OrQuery {
	return &OrQuery{Children: children}
}

func (q *OrQuery) String() string {
	return combine("OR", q.Children)
}

// AndNotQuery matches documents matching Positive but not Negative.
// Only Positive contributes to the score.
type AndNotQuery struct {
	Positive Query
	Negative Query
}

// NewAndNot creates an exclusion.
func NewAndNot(positive, negative Query) *AndNotQuery {
	return &AndNotQuery{Positive: positive, Negative: negative}
}

func (q *AndNotQuery) String() string {
	return fmt.Sprintf("(%s ANDNOT %s)", q.Positive, q.Negative)
}

// RangeQuery matches documents containing any term lexicographically
// between Lo and Hi. An empty Hi leaves the range unbounded above.
// Both bounds are inclusive by default; clear IncLo or IncHi to
// exclude one.
type RangeQuery struct {
	Field string
	Lo    string
	Hi    string
	IncLo bool
	IncHi bool
}

// NewRange creates an inclusive term range query.
func NewRange(field, lo, hi string) *RangeQuery {
	return &RangeQuery{Field: field, Lo: lo, Hi: hi, IncLo: true, IncHi: true}
}

func (q *RangeQuery) String() string {
	lb, rb := "[", "]"
	if !q.IncLo {
		lb = "{"
	}
	if !q.IncHi {
		rb = "}"
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", q.Field, lb, q.Lo, q.Hi, rb)
}

// PrefixQuery matches documents containing any term with the prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
}

// NewPrefix creates a prefix query.
func NewPrefix(field, prefix string) *PrefixQuery {
	return &PrefixQuery{Field: field, Prefix: prefix}
}

func (q *PrefixQuery) String() string {
	return fmt.Sprintf("%s:%s*", q.Field, q.Prefix)
}

// WildcardQuery matches documents containing any term matching the
// pattern, where * matches any run of characters and ? exactly one.
type WildcardQuery struct {
	Field   string
	Pattern string
}

// NewWildcard creates a wildcard query.
func NewWildcard(field, pattern string) *WildcardQuery {
	return &WildcardQuery{Field: field, Pattern: pattern}
}

func (q *WildcardQuery) String() string {
	return fmt.Sprintf("%s:%s", q.Field, q.Pattern)
}

// EveryQuery matches every live document with a constant score of 1.
type EveryQuery struct{}

// NewEvery creates a match-all query.
func NewEvery() *EveryQuery { return &EveryQuery{} }

func (q *EveryQuery) String() string { return "*" }

// BoostQuery multiplies the child's scores by Factor without changing
// which documents match.
type BoostQuery struct {
	Child  Query
	Factor float64
}

// NewBoost wraps a query with a score multiplier.
func NewBoost(child Query, factor float64) *BoostQuery {
	return &BoostQuery{Child: child, Factor: factor}
}

func (q *BoostQuery) String() string {
	return fmt.Sprintf("(%s)^%g", q.Child, q.Factor)
}

func combine(op string, children []Query) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}
