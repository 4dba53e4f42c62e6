package segment

import (
	"bytes"
	"io"
	"sort"

	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/model"
)

// IndexedField is one analyzed field of a document, ready for the
// inverted index: term -> ascending positions.
type IndexedField struct {
	Field string

	// Terms maps each term to its positions within the field.
	Terms map[string][]uint32

	// Length is the total token count of the field.
	Length uint32

	// Scored fields record length norms for relevance scoring.
	Scored bool
}

// Document is the builder's input: analyzed indexed fields plus raw
// stored values. It is transient and not retained after Add returns.
type Document struct {
	Indexed []IndexedField
	Stored  []StoredField
}

// Builder buffers documents and serializes them into an immutable
// segment. It is exclusively owned by a single writer; it is not safe
// for concurrent use.
type Builder struct {
	c codec.Codec

	// inverted maps field -> term -> postings in arrival order, which
	// keeps every accumulator sorted by ascending local id for free.
	inverted map[string]map[string][]model.Posting

	// storedDocs holds the raw stored values per local id; encoding is
	// deferred to WriteTo because the field table is only final then.
	storedDocs [][]StoredField

	// norms maps field -> per-doc token counts, padded lazily.
	norms map[string][]uint32

	fieldSet map[string]bool
	docCount uint32
}

// NewBuilder creates an empty segment builder using codec c for the
// stored-field section (nil selects codec.Default).
func NewBuilder(c codec.Codec) *Builder {
	if c == nil {
		c = codec.Default
	}
	return &Builder{
		c:        c,
		inverted: make(map[string]map[string][]model.Posting),
		norms:    make(map[string][]uint32),
		fieldSet: make(map[string]bool),
	}
}

// DocCount returns the number of buffered documents.
func (b *Builder) DocCount() uint32 {
	return b.docCount
}

// Add buffers one document and returns its assigned local id. Local ids
// are dense and follow arrival order.
func (b *Builder) Add(doc Document) model.LocalID {
	local := model.LocalID(b.docCount)
	b.docCount++

	for _, f := range doc.Indexed {
		b.fieldSet[f.Field] = true

		terms := b.inverted[f.Field]
		if terms == nil {
			terms = make(map[string][]model.Posting)
			b.inverted[f.Field] = terms
		}
		for term, positions := range f.Terms {
			terms[term] = append(terms[term], model.Posting{
				Local:     local,
				Freq:      uint32(len(positions)),
				Positions: positions,
			})
		}

		if f.Scored {
			lengths := b.norms[f.Field]
			for uint32(len(lengths)) < uint32(local) {
				lengths = append(lengths, 0)
			}
			b.norms[f.Field] = append(lengths, f.Length)
		}
	}

	for _, f := range doc.Stored {
		b.fieldSet[f.Field] = true
	}
	b.storedDocs = append(b.storedDocs, doc.Stored)

	return local
}

// WriteTo serializes the buffered documents as a segment container.
// The builder can be discarded afterwards.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	fields := make([]string, 0, len(b.fieldSet))
	for f := range b.fieldSet {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		fieldIdx[f] = i
	}

	var entries []termEntryData
	for _, field := range fields {
		terms := b.inverted[field]
		if terms == nil {
			continue
		}
		texts := make([]string, 0, len(terms))
		for t := range terms {
			texts = append(texts, t)
		}
		sort.Strings(texts)
		for _, t := range texts {
			entries = append(entries, termEntryData{
				field:    fieldIdx[field],
				text:     t,
				postings: terms[t],
			})
		}
	}

	storedDocs := make([][]byte, 0, len(b.storedDocs))
	var buf bytes.Buffer
	for _, rec := range b.storedDocs {
		buf.Reset()
		encodeStoredDoc(&buf, fieldIdx, rec)
		storedDocs = append(storedDocs, append([]byte(nil), buf.Bytes()...))
	}

	norms := make([][]uint32, len(fields))
	for i, field := range fields {
		lengths, ok := b.norms[field]
		if !ok {
			continue
		}
		for uint32(len(lengths)) < b.docCount {
			lengths = append(lengths, 0)
		}
		norms[i] = lengths
	}

	return writeSegment(w, b.c, fields, b.docCount, &sliceTermSource{entries: entries}, storedDocs, norms)
}
