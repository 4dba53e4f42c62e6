package segment

import (
	"bytes"
	"sort"
)

// dictEntry is one decoded term dictionary entry. Entries are sorted by
// (field, term) so exact lookup is a binary search and prefix/range scans
// are contiguous slices.
type dictEntry struct {
	field   int // index into the segment field table
	text    string
	off     uint64 // offset of the postings block within the postings section
	length  uint64
	docFreq uint32
}

type dictionary struct {
	entries []dictEntry
}

// Dictionary section layout:
//
//	termCount uvarint
//	per term (sorted by field index, then term text):
//	  fieldIdx uvarint
//	  termLen uvarint, term bytes
//	  postingsOff uvarint
//	  postingsLen uvarint
//	  docFreq uvarint
//
// The field table itself is lexicographically sorted (see meta section),
// so field-index order equals field-name order.

func encodeDictionary(buf *bytes.Buffer, entries []dictEntry) {
	appendUvarint(buf, uint64(len(entries)))
	for _, e := range entries {
		appendUvarint(buf, uint64(e.field))
		appendUvarint(buf, uint64(len(e.text)))
		buf.WriteString(e.text)
		appendUvarint(buf, e.off)
		appendUvarint(buf, e.length)
		appendUvarint(buf, uint64(e.docFreq))
	}
}

func decodeDictionary(blobName string, data []byte, numFields int, postingsLen int) (*dictionary, error) {
	r := sliceReader{data: data}
	count := r.uvarint()
	if r.bad {
		return nil, corruptf(blobName, "invalid dictionary header")
	}

	entries := make([]dictEntry, 0, count)
	var prev dictEntry
	for i := uint64(0); i < count; i++ {
		var e dictEntry
		e.field = int(r.uvarint())
		tlen := int(r.uvarint())
		if r.bad || r.remaining() < tlen {
			return nil, corruptf(blobName, "invalid dictionary entry %d", i)
		}
		e.text = string(r.data[r.pos : r.pos+tlen])
		r.pos += tlen
		e.off = r.uvarint()
		e.length = r.uvarint()
		e.docFreq = uint32(r.uvarint())
		if r.bad {
			return nil, corruptf(blobName, "invalid dictionary entry %d", i)
		}
		if e.field >= numFields {
			return nil, corruptf(blobName, "dictionary entry %d references unknown field %d", i, e.field)
		}
		if e.off+e.length > uint64(postingsLen) {
			return nil, corruptf(blobName, "dictionary entry %d postings range out of bounds", i)
		}
		if i > 0 && !lessEntry(prev, e) {
			return nil, corruptf(blobName, "dictionary not sorted at entry %d", i)
		}
		entries = append(entries, e)
		prev = e
	}
	return &dictionary{entries: entries}, nil
}

func lessEntry(a, b dictEntry) bool {
	if a.field != b.field {
		return a.field < b.field
	}
	return a.text < b.text
}

// seek returns the index of the first entry >= (field, text).
func (d *dictionary) seek(field int, text string) int {
	return sort.Search(len(d.entries), func(i int) bool {
		e := d.entries[i]
		if e.field != field {
			return e.field > field
		}
		return e.text >= text
	})
}

// lookup finds the exact entry for (field, text).
func (d *dictionary) lookup(field int, text string) (dictEntry, bool) {
	i := d.seek(field, text)
	if i < len(d.entries) && d.entries[i].field == field && d.entries[i].text == text {
		return d.entries[i], true
	}
	return dictEntry{}, false
}

func (d *dictionary) len() int {
	return len(d.entries)
}

func (d *dictionary) at(i int) dictEntry {
	return d.entries[i]
}
