package segment

import (
	"bytes"
)

// StoredField is one raw stored value attached to a document.
type StoredField struct {
	Field string
	Value []byte
}

// Stored section layout (compressed as one block with the segment codec):
//
//	per document, in local id order:
//	  fieldCount uvarint
//	  per field: fieldIdx uvarint, valueLen uvarint, value bytes
//
// Document start offsets are rebuilt with one scan at open time.

func encodeStoredDoc(buf *bytes.Buffer, fieldIdx map[string]int, fields []StoredField) {
	appendUvarint(buf, uint64(len(fields)))
	for _, f := range fields {
		appendUvarint(buf, uint64(fieldIdx[f.Field]))
		appendUvarint(buf, uint64(len(f.Value)))
		buf.Write(f.Value)
	}
}

// scanStoredOffsets walks the decompressed stored section once and
// returns the start offset of each document record.
func scanStoredOffsets(blobName string, data []byte, docCount uint32) ([]int, error) {
	offsets := make([]int, docCount)
	r := sliceReader{data: data}
	for doc := uint32(0); doc < docCount; doc++ {
		offsets[doc] = r.pos
		fieldCount := r.uvarint()
		for i := uint64(0); i < fieldCount; i++ {
			r.uvarint() // field index
			vlen := int(r.uvarint())
			if r.bad || r.remaining() < vlen {
				return nil, corruptf(blobName, "invalid stored record for doc %d", doc)
			}
			r.pos += vlen
		}
		if r.bad {
			return nil, corruptf(blobName, "invalid stored record for doc %d", doc)
		}
	}
	return offsets, nil
}

// decodeStoredDoc decodes the record at off. If want is non-nil, only the
// named fields are returned.
func decodeStoredDoc(blobName string, data []byte, off int, fields []string, want map[string]bool) (map[string][]byte, error) {
	r := sliceReader{data: data, pos: off}
	fieldCount := r.uvarint()
	out := make(map[string][]byte, fieldCount)
	for i := uint64(0); i < fieldCount; i++ {
		idx := int(r.uvarint())
		vlen := int(r.uvarint())
		if r.bad || r.remaining() < vlen || idx >= len(fields) {
			return nil, corruptf(blobName, "invalid stored record at offset %d", off)
		}
		name := fields[idx]
		if want == nil || want[name] {
			val := make([]byte, vlen)
			copy(val, r.data[r.pos:r.pos+vlen])
			out[name] = val
		}
		r.pos += vlen
	}
	return out, nil
}
