package search

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/lexgo/model"
)

// Filter restricts a search to an explicit document set, e.g. a facet
// restriction computed up front. It holds one roaring bitmap per
// segment; membership tests are applied before scoring.
type Filter struct {
	bitmaps map[model.SegmentID]*roaring.Bitmap
}

// NewFilter creates an empty filter that admits no documents.
func NewFilter() *Filter {
	return &Filter{bitmaps: make(map[model.SegmentID]*roaring.Bitmap)}
}

// Add admits a document.
func (f *Filter) Add(id model.GlobalID) {
	bm := f.bitmaps[id.Segment]
	if bm == nil {
		bm = roaring.New()
		f.bitmaps[id.Segment] = bm
	}
	bm.Add(uint32(id.Local))
}

// Contains reports whether the document is admitted.
func (f *Filter) Contains(id model.GlobalID) bool {
	bm := f.bitmaps[id.Segment]
	return bm != nil && bm.Contains(uint32(id.Local))
}

// Len returns the number of admitted documents.
func (f *Filter) Len() uint64 {
	var n uint64
	for _, bm := range f.bitmaps {
		n += bm.GetCardinality()
	}
	return n
}
