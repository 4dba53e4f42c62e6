package segment

import (
	"bytes"
	"io"

	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/model"
)

// termEntryData is one term with its complete postings list, produced in
// (field, term) order by a termSource.
type termEntryData struct {
	field    int
	text     string
	postings []model.Posting
}

// termSource yields term entries in strictly ascending (field, term)
// order. The builder feeds a sorted slice; the merger feeds a k-way heap.
type termSource interface {
	next() (termEntryData, bool, error)
}

// writeSegment serializes a complete segment container.
//
// fields must be lexicographically sorted; storedDocs holds one encoded
// record per local id; norms has one entry per field (nil when the field
// carries no norms).
func writeSegment(w io.Writer, c codec.Codec, fields []string, docCount uint32, terms termSource, storedDocs [][]byte, norms [][]uint32) (int64, error) {
	if c == nil {
		c = codec.Default
	}

	var postingsBuf bytes.Buffer
	var entries []dictEntry
	for {
		te, ok, err := terms.next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		off := uint64(postingsBuf.Len())
		encodePostings(&postingsBuf, te.postings)
		entries = append(entries, dictEntry{
			field:   te.field,
			text:    te.text,
			off:     off,
			length:  uint64(postingsBuf.Len()) - off,
			docFreq: uint32(len(te.postings)),
		})
	}

	var dictBuf bytes.Buffer
	encodeDictionary(&dictBuf, entries)

	var metaBuf bytes.Buffer
	encodeMeta(&metaBuf, docCount, fields)

	var normsBuf bytes.Buffer
	encodeNorms(&normsBuf, norms)

	var storedBuf bytes.Buffer
	for _, rec := range storedDocs {
		storedBuf.Write(rec)
	}
	storedCompressed, err := c.Compress(storedBuf.Bytes())
	if err != nil {
		return 0, err
	}

	return writeContainer(w, c.Name(), []section{
		{typ: sectionMeta, data: metaBuf.Bytes()},
		{typ: sectionDict, data: dictBuf.Bytes()},
		{typ: sectionPostings, data: postingsBuf.Bytes()},
		{typ: sectionStored, data: storedCompressed},
		{typ: sectionNorms, data: normsBuf.Bytes()},
	})
}

// sliceTermSource yields from a pre-sorted slice.
type sliceTermSource struct {
	entries []termEntryData
	pos     int
}

func (s *sliceTermSource) next() (termEntryData, bool, error) {
	if s.pos >= len(s.entries) {
		return termEntryData{}, false, nil
	}
	te := s.entries[s.pos]
	s.pos++
	return te, true, nil
}
