package model

import (
	"fmt"
)

// SegmentID is the unique identifier for a segment within an index.
type SegmentID uint64

// LocalID is a dense, segment-local identifier for a document.
// It is transient and may change during merges.
type LocalID uint32

// GlobalID identifies a document across the whole index.
// It is stable for the lifetime of its segment.
type GlobalID struct {
	Segment SegmentID
	Local   LocalID
}

// String returns a string representation of the GlobalID.
func (g GlobalID) String() string {
	return fmt.Sprintf("Doc(%d:%d)", g.Segment, g.Local)
}

// Less reports whether g orders before other.
// Global ids order by (segment, local), which matches the order
// the cross-segment union emits documents in.
func (g GlobalID) Less(other GlobalID) bool {
	if g.Segment != other.Segment {
		return g.Segment < other.Segment
	}
	return g.Local < other.Local
}

// Compare returns -1, 0 or +1 comparing g against other.
func (g GlobalID) Compare(other GlobalID) int {
	switch {
	case g.Less(other):
		return -1
	case other.Less(g):
		return +1
	default:
		return 0
	}
}

// Term identifies one entry in a segment's term dictionary.
type Term struct {
	Field string
	Text  string
}

// Compare orders terms lexicographically by (field, text), the order
// term dictionaries are sorted in.
func (t Term) Compare(other Term) int {
	if t.Field != other.Field {
		if t.Field < other.Field {
			return -1
		}
		return +1
	}
	if t.Text != other.Text {
		if t.Text < other.Text {
			return -1
		}
		return +1
	}
	return 0
}

// String returns a string representation of the term.
func (t Term) String() string {
	return fmt.Sprintf("%s:%s", t.Field, t.Text)
}

// Posting is one (document, frequency, positions) record for a term.
// Positions are token indexes within the field, ascending.
type Posting struct {
	Local     LocalID
	Freq      uint32
	Positions []uint32
}

// Hit is one ranked search result.
type Hit struct {
	ID    GlobalID
	Score float64

	// Stored holds requested stored-field values, if any.
	Stored map[string][]byte
}
