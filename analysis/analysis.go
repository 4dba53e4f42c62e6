package analysis

import (
	"strings"
	"unicode"
)

// Token is one term emitted by an analyzer.
type Token struct {
	// Term is the normalized term text.
	Term string

	// Position is the token index within the field, starting at 0.
	// Consecutive tokens have consecutive positions, which is what the
	// phrase matcher relies on.
	Position uint32

	// Start and End are byte offsets of the token in the raw input.
	Start uint32
	End   uint32
}

// Analyzer converts raw field text into an ordered token stream.
//
// The stream is finite and consumed once per document per field.
// Implementations must be safe for concurrent use; the engine calls a
// single analyzer from multiple writer commits over its lifetime.
type Analyzer interface {
	Analyze(field string, text string) []Token
}

// Standard is the default analyzer: it splits on non-letter/non-digit
// runes and lowercases each token. No stemming or stopwording.
type Standard struct{}

// NewStandard creates the default analyzer.
func NewStandard() *Standard { return &Standard{} }

var _ Analyzer = (*Standard)(nil)

// Analyze implements Analyzer.
func (a *Standard) Analyze(_ string, text string) []Token {
	var tokens []Token
	var pos uint32

	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, Token{
				Term:     strings.ToLower(text[start:i]),
				Position: pos,
				Start:    uint32(start),
				End:      uint32(i),
			})
			pos++
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{
			Term:     strings.ToLower(text[start:]),
			Position: pos,
			Start:    uint32(start),
			End:      uint32(len(text)),
		})
	}
	return tokens
}
