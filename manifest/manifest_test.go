package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/model"
)

func TestLoadEmpty(t *testing.T) {
	s := NewStore(blobstore.NewMemoryStore())

	m, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.Generation)
	assert.Empty(t, m.Segments)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	s := NewStore(bs)

	m, err := s.Load(ctx)
	require.NoError(t, err)

	m.NextSegmentID = 3
	m.Segments = []SegmentInfo{
		{ID: 1, DocCount: 10, Size: 1024, DelGen: 4},
		{ID: 2, DocCount: 5, Size: 512},
	}
	require.NoError(t, s.Save(ctx, m))
	assert.Equal(t, uint64(1), m.Generation)

	got, err := NewStore(bs).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.Generation, got.Generation)
	assert.Equal(t, m.NextSegmentID, got.NextSegmentID)
	assert.Equal(t, m.Segments, got.Segments)
}

func TestGenerationsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewMemoryStore())

	m, err := s.Load(ctx)
	require.NoError(t, err)

	for want := uint64(1); want <= 5; want++ {
		require.NoError(t, s.Save(ctx, m))
		assert.Equal(t, want, m.Generation)
	}
}

// A manifest blob written without repointing CURRENT must be invisible,
// mirroring a crash between the two writes.
func TestCrashBeforeRepointKeepsPriorGeneration(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	s := NewStore(bs)

	m, err := s.Load(ctx)
	require.NoError(t, err)
	m.Segments = []SegmentInfo{{ID: 1, DocCount: 1}}
	require.NoError(t, s.Save(ctx, m))

	// Simulate the next generation's manifest blob landing without the
	// CURRENT swap.
	require.NoError(t, bs.Put(ctx, "MANIFEST-000002.json", []byte(`{"version":1,"generation":2}`)))

	got, err := NewStore(bs).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Generation)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, model.SegmentID(1), got.Segments[0].ID)
}

func TestCloneIsDeep(t *testing.T) {
	m := &Manifest{
		Generation: 4,
		Segments:   []SegmentInfo{{ID: 1}},
	}
	cp := m.Clone()
	cp.Segments[0].ID = 99
	cp.Segments = append(cp.Segments, SegmentInfo{ID: 2})

	assert.Equal(t, model.SegmentID(1), m.Segments[0].ID)
	assert.Len(t, m.Segments, 1)
}
