package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/model"
)

const (
	ManifestPrefix  = "MANIFEST"
	CurrentBlobName = "CURRENT"
	CurrentVersion  = 1
)

// Manifest is the versioned list of live segments at a point in time.
// It is never edited in place: every commit or merge writes a new
// manifest blob and atomically repoints CURRENT at it.
type Manifest struct {
	Version       int             `json:"version"`
	Generation    uint64          `json:"generation"`
	NextSegmentID model.SegmentID `json:"next_segment_id"`
	Segments      []SegmentInfo   `json:"segments"`
}

// SegmentInfo describes a single live segment.
//
// DelGen names the tombstone sidecar generation this manifest binds to
// the segment; 0 means no tombstones. Binding delete visibility to the
// manifest keeps it atomic with publication: a sidecar written for a
// commit that never repoints CURRENT is never referenced.
type SegmentInfo struct {
	ID       model.SegmentID `json:"id"`
	DocCount uint32          `json:"doc_count"`
	Size     int64           `json:"size"`
	DelGen   uint64          `json:"del_gen,omitempty"`
}

// Clone returns a deep copy, the starting point for the next generation.
func (m *Manifest) Clone() *Manifest {
	cp := *m
	cp.Segments = append([]SegmentInfo(nil), m.Segments...)
	return &cp
}

// Store manages manifest blobs and atomic generation swaps.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a manifest store on top of a blob store.
func NewStore(bs blobstore.BlobStore) *Store {
	return &Store{store: bs}
}

// Load reads the current manifest. A missing CURRENT pointer yields an
// empty manifest at generation 0.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readBlob(ctx, CurrentBlobName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return &Manifest{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := s.readBlob(ctx, string(current))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest does not decode: %w", err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, CurrentVersion)
	}
	return &m, nil
}

// Save atomically publishes m as the next generation.
//
// The new manifest blob is written first; only the final Put of the
// CURRENT pointer makes it visible. A crash before that leaves the prior
// manifest untouched, so no partially published segment set is ever
// referenced.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.Generation++

	name := fmt.Sprintf("%s-%06d.json", ManifestPrefix, m.Generation)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, name, data); err != nil {
		return err
	}

	return s.store.Put(ctx, CurrentBlobName, []byte(name))
}

func (s *Store) readBlob(ctx context.Context, name string) ([]byte, error) {
	blob, err := s.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()
	return blobstore.ReadFull(ctx, blob)
}
