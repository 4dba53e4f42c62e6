package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/model"
)

// BlobName returns the blob name for a segment id.
func BlobName(id model.SegmentID) string {
	return fmt.Sprintf("seg-%016x.lxg", uint64(id))
}

// TombstoneName returns the blob name of a segment's deletion sidecar
// at the given tombstone generation.
func TombstoneName(id model.SegmentID, gen uint64) string {
	return fmt.Sprintf("seg-%016x.del-%06d", uint64(id), gen)
}

// TombstonePrefix returns the blob name prefix shared by all tombstone
// generations of a segment, for listing and cleanup.
func TombstonePrefix(id model.SegmentID) string {
	return fmt.Sprintf("seg-%016x.del-", uint64(id))
}

// Segment is an immutable unit of index storage covering a fixed set of
// documents with a dense local id space [0, DocCount).
//
// Once written a segment is never mutated; the only thing that changes is
// the deletion bitmap, which is swapped copy-on-write so concurrent
// readers keep the version they started with.
type Segment struct {
	id       model.SegmentID
	blobName string

	fields   []string
	fieldIdx map[string]int

	dict     *dictionary
	postings []byte

	stored        []byte
	storedOffsets []int

	norms       [][]uint32 // per field index; nil when the field has no norms
	fieldTotals []uint64

	docCount uint32
	size     int64

	deleted atomic.Pointer[roaring.Bitmap]
}

// Open loads the segment with the given id from the store, verifying all
// section checksums. delGen selects the deletion sidecar generation the
// manifest references; 0 means the segment has no tombstones.
func Open(ctx context.Context, store blobstore.BlobStore, id model.SegmentID, delGen uint64) (*Segment, error) {
	name := BlobName(id)
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := blobstore.ReadFull(ctx, blob)
	closeErr := blob.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	seg, err := open(name, id, data)
	if err != nil {
		return nil, err
	}

	if delGen != 0 {
		tombstones, err := LoadTombstones(ctx, store, id, delGen)
		if err != nil {
			return nil, err
		}
		seg.deleted.Store(tombstones)
	}
	return seg, nil
}

func open(name string, id model.SegmentID, data []byte) (*Segment, error) {
	codecName, sections, err := parseContainer(name, data)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, corruptf(name, "unknown codec %q", codecName)
	}

	meta, ok := sections[sectionMeta]
	if !ok {
		return nil, corruptf(name, "missing meta section")
	}
	docCount, fields, err := decodeMeta(name, meta)
	if err != nil {
		return nil, err
	}

	postings, ok := sections[sectionPostings]
	if !ok {
		return nil, corruptf(name, "missing postings section")
	}

	dictData, ok := sections[sectionDict]
	if !ok {
		return nil, corruptf(name, "missing dictionary section")
	}
	dict, err := decodeDictionary(name, dictData, len(fields), len(postings))
	if err != nil {
		return nil, err
	}

	storedRaw, ok := sections[sectionStored]
	if !ok {
		return nil, corruptf(name, "missing stored section")
	}
	stored, err := c.Decompress(storedRaw)
	if err != nil {
		return nil, &CorruptError{Name: name, Detail: "stored section does not decompress", cause: err}
	}
	storedOffsets, err := scanStoredOffsets(name, stored, docCount)
	if err != nil {
		return nil, err
	}

	normsData, ok := sections[sectionNorms]
	if !ok {
		return nil, corruptf(name, "missing norms section")
	}
	norms, totals, err := decodeNorms(name, normsData, len(fields), docCount)
	if err != nil {
		return nil, err
	}

	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		fieldIdx[f] = i
	}

	return &Segment{
		id:            id,
		blobName:      name,
		fields:        fields,
		fieldIdx:      fieldIdx,
		dict:          dict,
		postings:      postings,
		stored:        stored,
		storedOffsets: storedOffsets,
		norms:         norms,
		fieldTotals:   totals,
		docCount:      docCount,
		size:          int64(len(data)),
	}, nil
}

// LoadTombstones reads the deletion sidecar of a segment at a specific
// tombstone generation. A sidecar the manifest references but the store
// lacks is reported as corruption.
func LoadTombstones(ctx context.Context, store blobstore.BlobStore, id model.SegmentID, gen uint64) (*roaring.Bitmap, error) {
	name := TombstoneName(id, gen)
	blob, err := store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, corruptf(name, "referenced tombstone sidecar is missing")
		}
		return nil, err
	}
	data, err := blobstore.ReadFull(ctx, blob)
	blob.Close()
	if err != nil {
		return nil, err
	}
	return decodeTombstones(name, data)
}

// ID returns the segment id.
func (s *Segment) ID() model.SegmentID { return s.id }

// DocCount returns the total number of documents, including tombstoned ones.
func (s *Segment) DocCount() uint32 { return s.docCount }

// LiveDocCount returns the number of documents not flagged deleted.
func (s *Segment) LiveDocCount() uint32 {
	if d := s.deleted.Load(); d != nil {
		return s.docCount - uint32(d.GetCardinality())
	}
	return s.docCount
}

// Size returns the on-disk size of the segment blob in bytes.
func (s *Segment) Size() int64 { return s.size }

// Fields returns the segment's field table (lexicographically sorted).
func (s *Segment) Fields() []string { return s.fields }

// Deleted returns the current deletion bitmap, or nil when no document is
// tombstoned. The returned bitmap must not be mutated.
func (s *Segment) Deleted() *roaring.Bitmap {
	return s.deleted.Load()
}

// SetDeleted atomically replaces the deletion bitmap. The tombstone set
// is append-only: callers pass a superset of the previous bitmap, never
// unset a bit.
func (s *Segment) SetDeleted(bm *roaring.Bitmap) {
	s.deleted.Store(bm)
}

// IsDeleted reports whether the local doc is tombstoned.
func (s *Segment) IsDeleted(local model.LocalID) bool {
	d := s.deleted.Load()
	return d != nil && d.Contains(uint32(local))
}

// DocFreq returns the number of documents containing (field, term),
// not adjusted for tombstones.
func (s *Segment) DocFreq(field, term string) uint32 {
	fi, ok := s.fieldIdx[field]
	if !ok {
		return 0
	}
	e, ok := s.dict.lookup(fi, term)
	if !ok {
		return 0
	}
	return e.docFreq
}

// Postings returns a lazy iterator over the postings of (field, term),
// bound to the deletion bitmap passed in. Pass Deleted() to observe the
// segment's current tombstones, or a snapshot-pinned bitmap.
func (s *Segment) Postings(field, term string, deleted *roaring.Bitmap) *PostingsIterator {
	fi, ok := s.fieldIdx[field]
	if !ok {
		return emptyPostings()
	}
	e, ok := s.dict.lookup(fi, term)
	if !ok {
		return emptyPostings()
	}
	block := s.postings[e.off : e.off+e.length]
	return newPostingsIterator(s.blobName, block, deleted)
}

// TermsFrom calls fn for every term in field starting at the first term
// >= from, in lexicographic order, until fn returns false or the field's
// terms are exhausted.
func (s *Segment) TermsFrom(field, from string, fn func(term string, docFreq uint32) bool) {
	fi, ok := s.fieldIdx[field]
	if !ok {
		return
	}
	for i := s.dict.seek(fi, from); i < s.dict.len(); i++ {
		e := s.dict.at(i)
		if e.field != fi {
			return
		}
		if !fn(e.text, e.docFreq) {
			return
		}
	}
}

// StoredFields returns the stored values of the given document. If fields
// is non-empty, only the named fields are returned.
func (s *Segment) StoredFields(local model.LocalID, fields ...string) (map[string][]byte, error) {
	if uint32(local) >= s.docCount {
		return nil, corruptf(s.blobName, "stored fetch for out-of-range doc %d", local)
	}
	var want map[string]bool
	if len(fields) > 0 {
		want = make(map[string]bool, len(fields))
		for _, f := range fields {
			want[f] = true
		}
	}
	return decodeStoredDoc(s.blobName, s.stored, s.storedOffsets[local], s.fields, want)
}

// FieldLength returns the token count of field in the given document,
// or 0 when the field carries no norms.
func (s *Segment) FieldLength(local model.LocalID, field string) uint32 {
	fi, ok := s.fieldIdx[field]
	if !ok || s.norms[fi] == nil || uint32(local) >= s.docCount {
		return 0
	}
	return s.norms[fi][local]
}

// TotalFieldLength returns the sum of field lengths across all documents,
// including tombstoned ones.
func (s *Segment) TotalFieldLength(field string) uint64 {
	fi, ok := s.fieldIdx[field]
	if !ok {
		return 0
	}
	return s.fieldTotals[fi]
}

// Meta section layout:
//
//	docCount uvarint
//	fieldCount uvarint
//	per field: nameLen uvarint, name bytes (lexicographically sorted)

func encodeMeta(buf *bytes.Buffer, docCount uint32, fields []string) {
	appendUvarint(buf, uint64(docCount))
	appendUvarint(buf, uint64(len(fields)))
	for _, f := range fields {
		appendUvarint(buf, uint64(len(f)))
		buf.WriteString(f)
	}
}

func decodeMeta(blobName string, data []byte) (uint32, []string, error) {
	r := sliceReader{data: data}
	docCount := uint32(r.uvarint())
	fieldCount := int(r.uvarint())
	if r.bad {
		return 0, nil, corruptf(blobName, "invalid meta header")
	}
	fields := make([]string, 0, fieldCount)
	for i := 0; i < fieldCount; i++ {
		nlen := int(r.uvarint())
		if r.bad || r.remaining() < nlen {
			return 0, nil, corruptf(blobName, "invalid meta field entry %d", i)
		}
		name := string(r.data[r.pos : r.pos+nlen])
		r.pos += nlen
		if i > 0 && fields[i-1] >= name {
			return 0, nil, corruptf(blobName, "meta field table not sorted")
		}
		fields = append(fields, name)
	}
	return docCount, fields, nil
}

// Norms section layout, per field in table order:
//
//	entryCount uvarint (0 when the field has no norms, docCount otherwise)
//	entryCount uvarint lengths

func encodeNorms(buf *bytes.Buffer, norms [][]uint32) {
	for _, lengths := range norms {
		appendUvarint(buf, uint64(len(lengths)))
		for _, l := range lengths {
			appendUvarint(buf, uint64(l))
		}
	}
}

func decodeNorms(blobName string, data []byte, numFields int, docCount uint32) ([][]uint32, []uint64, error) {
	r := sliceReader{data: data}
	norms := make([][]uint32, numFields)
	totals := make([]uint64, numFields)
	for fi := 0; fi < numFields; fi++ {
		count := r.uvarint()
		if r.bad {
			return nil, nil, corruptf(blobName, "invalid norms header for field %d", fi)
		}
		if count == 0 {
			continue
		}
		if count != uint64(docCount) {
			return nil, nil, corruptf(blobName, "norms count %d does not match doc count %d", count, docCount)
		}
		lengths := make([]uint32, count)
		var total uint64
		for i := uint64(0); i < count; i++ {
			l := r.uvarint()
			lengths[i] = uint32(l)
			total += l
		}
		if r.bad {
			return nil, nil, corruptf(blobName, "invalid norms body for field %d", fi)
		}
		norms[fi] = lengths
		totals[fi] = total
	}
	return norms, totals, nil
}
