package segment_test

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo/analysis"
	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/codec"
	"github.com/hupe1980/lexgo/model"
	"github.com/hupe1980/lexgo/segment"
)

// indexedField analyzes text into an inverted field the way the writer
// does, so segment tests stay independent of the engine package.
func indexedField(name, text string, scored bool) segment.IndexedField {
	tokens := analysis.NewStandard().Analyze(name, text)
	terms := make(map[string][]uint32)
	for _, tok := range tokens {
		terms[tok.Term] = append(terms[tok.Term], tok.Position)
	}
	return segment.IndexedField{
		Field:  name,
		Terms:  terms,
		Length: uint32(len(tokens)),
		Scored: scored,
	}
}

func bodyDoc(id, body string) segment.Document {
	return segment.Document{
		Indexed: []segment.IndexedField{
			indexedField("id", id, false),
			indexedField("body", body, true),
		},
		Stored: []segment.StoredField{
			{Field: "id", Value: []byte(id)},
			{Field: "body", Value: []byte(body)},
		},
	}
}

func writeDocs(t *testing.T, store blobstore.BlobStore, id model.SegmentID, docs ...segment.Document) *segment.Segment {
	t.Helper()
	ctx := context.Background()

	b := segment.NewBuilder(nil)
	for _, doc := range docs {
		b.Add(doc)
	}

	wb, err := store.Create(ctx, segment.BlobName(id))
	require.NoError(t, err)
	_, err = b.WriteTo(wb)
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	seg, err := segment.Open(ctx, store, id, 0)
	require.NoError(t, err)
	return seg
}

func TestBuildAndOpen(t *testing.T) {
	store := blobstore.NewMemoryStore()
	seg := writeDocs(t, store, 1,
		bodyDoc("1", "the cat sat"),
		bodyDoc("2", "the dog barked"),
		bodyDoc("3", "cat and dog"),
	)

	assert.Equal(t, model.SegmentID(1), seg.ID())
	assert.Equal(t, uint32(3), seg.DocCount())
	assert.Equal(t, uint32(3), seg.LiveDocCount())
	assert.Equal(t, []string{"body", "id"}, seg.Fields())
	assert.Greater(t, seg.Size(), int64(0))

	assert.Equal(t, uint32(2), seg.DocFreq("body", "cat"))
	assert.Equal(t, uint32(2), seg.DocFreq("body", "dog"))
	assert.Equal(t, uint32(2), seg.DocFreq("body", "the"))
	assert.Equal(t, uint32(0), seg.DocFreq("body", "fish"))
	assert.Equal(t, uint32(0), seg.DocFreq("title", "cat"))
}

func TestPostingsIteration(t *testing.T) {
	store := blobstore.NewMemoryStore()
	seg := writeDocs(t, store, 1,
		bodyDoc("1", "cat cat cat"),
		bodyDoc("2", "dog"),
		bodyDoc("3", "a cat again"),
	)

	it := seg.Postings("body", "cat", nil)

	require.True(t, it.Next())
	assert.Equal(t, model.LocalID(0), it.Doc())
	assert.Equal(t, uint32(3), it.Freq())
	assert.Equal(t, []uint32{0, 1, 2}, it.Positions())

	require.True(t, it.Next())
	assert.Equal(t, model.LocalID(2), it.Doc())
	assert.Equal(t, uint32(1), it.Freq())
	assert.Equal(t, []uint32{1}, it.Positions())

	assert.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestPostingsSkipTo(t *testing.T) {
	store := blobstore.NewMemoryStore()
	docs := make([]segment.Document, 10)
	for i := range docs {
		docs[i] = bodyDoc("x", "common term")
	}
	seg := writeDocs(t, store, 1, docs...)

	it := seg.Postings("body", "common", nil)
	require.True(t, it.SkipTo(7))
	assert.Equal(t, model.LocalID(7), it.Doc())

	// SkipTo at or before the current doc is a no-op.
	require.True(t, it.SkipTo(3))
	assert.Equal(t, model.LocalID(7), it.Doc())

	assert.False(t, it.SkipTo(100))
}

func TestPostingsSkipDeleted(t *testing.T) {
	store := blobstore.NewMemoryStore()
	seg := writeDocs(t, store, 1,
		bodyDoc("1", "cat"),
		bodyDoc("2", "cat"),
		bodyDoc("3", "cat"),
	)

	deleted := roaring.New()
	deleted.Add(1)

	it := seg.Postings("body", "cat", deleted)
	require.True(t, it.Next())
	assert.Equal(t, model.LocalID(0), it.Doc())
	require.True(t, it.Next())
	assert.Equal(t, model.LocalID(2), it.Doc())
	assert.False(t, it.Next())
}

func TestStoredFields(t *testing.T) {
	store := blobstore.NewMemoryStore()
	seg := writeDocs(t, store, 1,
		bodyDoc("1", "first body"),
		bodyDoc("2", "second body"),
	)

	all, err := seg.StoredFields(1)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"id":   []byte("2"),
		"body": []byte("second body"),
	}, all)

	subset, err := seg.StoredFields(0, "id")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"id": []byte("1")}, subset)

	_, err = seg.StoredFields(5)
	require.Error(t, err)
}

func TestNorms(t *testing.T) {
	store := blobstore.NewMemoryStore()
	seg := writeDocs(t, store, 1,
		bodyDoc("1", "one two three"),
		bodyDoc("2", "one"),
	)

	assert.Equal(t, uint32(3), seg.FieldLength(0, "body"))
	assert.Equal(t, uint32(1), seg.FieldLength(1, "body"))
	assert.Equal(t, uint64(4), seg.TotalFieldLength("body"))

	// The id field is not scored, so it carries no norms.
	assert.Equal(t, uint32(0), seg.FieldLength(0, "id"))
	assert.Equal(t, uint64(0), seg.TotalFieldLength("id"))
}

func TestTermsFrom(t *testing.T) {
	store := blobstore.NewMemoryStore()
	seg := writeDocs(t, store, 1,
		bodyDoc("1", "apple banana cherry date"),
	)

	var terms []string
	seg.TermsFrom("body", "banana", func(term string, docFreq uint32) bool {
		terms = append(terms, term)
		assert.Equal(t, uint32(1), docFreq)
		return true
	})
	assert.Equal(t, []string{"banana", "cherry", "date"}, terms)

	// Early stop.
	terms = nil
	seg.TermsFrom("body", "", func(term string, _ uint32) bool {
		terms = append(terms, term)
		return len(terms) < 2
	})
	assert.Equal(t, []string{"apple", "banana"}, terms)
}

func TestTombstonesPersist(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	seg := writeDocs(t, store, 1,
		bodyDoc("1", "cat"),
		bodyDoc("2", "cat"),
	)

	bm := roaring.New()
	bm.Add(0)
	require.NoError(t, segment.SaveTombstones(ctx, store, 1, 7, bm))
	seg.SetDeleted(bm)
	assert.Equal(t, uint32(1), seg.LiveDocCount())
	assert.True(t, seg.IsDeleted(0))
	assert.False(t, seg.IsDeleted(1))

	// A fresh open at the sidecar's generation picks it up; an open
	// without one sees no tombstones.
	reopened, err := segment.Open(ctx, store, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), reopened.LiveDocCount())
	assert.True(t, reopened.IsDeleted(0))

	clean, err := segment.Open(ctx, store, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), clean.LiveDocCount())
}

func TestOpenMissingTombstoneSidecarIsCorruption(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	writeDocs(t, store, 1, bodyDoc("1", "cat"))

	_, err := segment.Open(ctx, store, 1, 3)
	var ce *segment.CorruptError
	require.ErrorAs(t, err, &ce)
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	s1 := writeDocs(t, store, 1,
		bodyDoc("1", "cat alone"),
		bodyDoc("2", "doomed dog"),
		bodyDoc("3", "cat and dog"),
	)
	s2 := writeDocs(t, store, 2,
		bodyDoc("4", "another dog"),
	)

	// Tombstone doc 1 of the first segment; "doomed" only occurs there.
	bm := roaring.New()
	bm.Add(1)
	s1.SetDeleted(bm)

	wb, err := store.Create(ctx, segment.BlobName(3))
	require.NoError(t, err)
	res, err := segment.Merge(wb, codec.Default, []*segment.Segment{s1, s2})
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	assert.Equal(t, uint32(3), res.DocCount)

	// Survivors renumber densely in source order.
	local, ok := res.Remap(0, 0)
	require.True(t, ok)
	assert.Equal(t, model.LocalID(0), local)
	_, ok = res.Remap(0, 1)
	assert.False(t, ok)
	local, ok = res.Remap(0, 2)
	require.True(t, ok)
	assert.Equal(t, model.LocalID(1), local)
	local, ok = res.Remap(1, 0)
	require.True(t, ok)
	assert.Equal(t, model.LocalID(2), local)

	merged, err := segment.Open(ctx, store, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), merged.DocCount())

	// Postings union in ascending new local id order.
	it := merged.Postings("body", "dog", nil)
	var docs []model.LocalID
	for it.Next() {
		docs = append(docs, it.Doc())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []model.LocalID{1, 2}, docs)

	// Terms whose every posting was tombstoned vanish entirely.
	assert.Equal(t, uint32(0), merged.DocFreq("body", "doomed"))

	// Stored fields and norms follow the survivors.
	stored, err := merged.StoredFields(2, "id")
	require.NoError(t, err)
	assert.Equal(t, []byte("4"), stored["id"])
	assert.Equal(t, uint32(3), merged.FieldLength(1, "body"))
	assert.Equal(t, uint64(2+3+2), merged.TotalFieldLength("body"))
}

func TestMergeCapturesDeletionBitmaps(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	s1 := writeDocs(t, store, 1, bodyDoc("1", "cat"), bodyDoc("2", "cat"))

	pre := roaring.New()
	pre.Add(0)
	s1.SetDeleted(pre)

	wb, err := store.Create(ctx, segment.BlobName(2))
	require.NoError(t, err)
	res, err := segment.Merge(wb, codec.Default, []*segment.Segment{s1})
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	// The bitmap pinned at merge start is exposed for diffing against
	// deletes that landed during the merge.
	captured := res.CapturedDeleted(0)
	require.NotNil(t, captured)
	assert.True(t, captured.Contains(0))
	assert.Equal(t, uint32(1), res.DocCount)
}

func TestOpenDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	writeDocs(t, store, 1, bodyDoc("1", "cat sat on the mat"))

	blob, err := store.Open(ctx, segment.BlobName(1))
	require.NoError(t, err)
	data, err := blobstore.ReadFull(ctx, blob)
	require.NoError(t, err)
	require.NoError(t, blob.Close())

	// Flip one byte in the middle of the container.
	data[len(data)/2] ^= 0xff
	require.NoError(t, store.Put(ctx, segment.BlobName(1), data))

	_, err = segment.Open(ctx, store, 1, 0)
	require.Error(t, err)
	var ce *segment.CorruptError
	assert.ErrorAs(t, err, &ce)
}

func TestOpenDetectsTruncation(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	writeDocs(t, store, 1, bodyDoc("1", "cat"))

	blob, err := store.Open(ctx, segment.BlobName(1))
	require.NoError(t, err)
	data, err := blobstore.ReadFull(ctx, blob)
	require.NoError(t, err)
	require.NoError(t, blob.Close())

	require.NoError(t, store.Put(ctx, segment.BlobName(1), data[:len(data)/2]))

	_, err = segment.Open(ctx, store, 1, 0)
	require.Error(t, err)
	var ce *segment.CorruptError
	assert.ErrorAs(t, err, &ce)
}
