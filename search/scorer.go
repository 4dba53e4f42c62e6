package search

import (
	"math"
)

// Default BM25 parameters. They carry over unchanged from the usual
// literature values and work well for prose-sized fields.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Scorer computes BM25 term weights with per-field length
// normalization. Field boosts from the schema and query boosts
// multiply on top of the base weight.
type Scorer struct {
	// K1 controls term-frequency saturation.
	K1 float64

	// B controls how strongly the field length normalizes the weight.
	B float64
}

// NewScorer returns a scorer with the default parameters.
func NewScorer() *Scorer {
	return &Scorer{K1: DefaultK1, B: DefaultB}
}

// IDF returns the inverse document frequency for a term occurring in
// df of n documents. The +0.5 smoothing keeps the value positive and
// finite even for terms present in every document.
func (s *Scorer) IDF(n, df uint64) float64 {
	num := float64(n) - float64(df) + 0.5
	den := float64(df) + 0.5
	return math.Log(1 + num/den)
}

// tfWeight returns the saturated, length-normalized term-frequency
// component. dl is the document's field length, avg the corpus mean;
// an avg of 0 (no norms recorded) disables normalization.
func (s *Scorer) tfWeight(tf, dl, avg float64) float64 {
	if tf <= 0 {
		return 0
	}
	norm := 1.0
	if avg > 0 {
		norm = 1 - s.B + s.B*(dl/avg)
	}
	return tf * (s.K1 + 1) / (tf + s.K1*norm)
}
