package segment

import (
	"context"
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/lexgo/blobstore"
	"github.com/hupe1980/lexgo/model"
)

// Tombstone sidecar layout:
//
//	[0:4] magic "LXT1"
//	[4:8] CRC32 of the bitmap bytes
//	[8:]  serialized roaring bitmap
//
// Sidecars are immutable once written: every delete commit writes the
// grown bitmap under the next tombstone generation's name, and only the
// manifest swap makes that generation the referenced one. The replaced
// sidecar is removed after a successful publish.

var tombstoneMagic = [4]byte{'L', 'X', 'T', '1'}

func encodeTombstones(bm *roaring.Bitmap) ([]byte, error) {
	body, err := bm.ToBytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(body))
	copy(out[0:4], tombstoneMagic[:])
	binary.LittleEndian.PutUint32(out[4:8], checksum(body))
	copy(out[8:], body)
	return out, nil
}

func decodeTombstones(name string, data []byte) (*roaring.Bitmap, error) {
	if len(data) < 8 {
		return nil, corruptf(name, "truncated tombstone sidecar")
	}
	if [4]byte(data[0:4]) != tombstoneMagic {
		return nil, corruptf(name, "bad tombstone magic")
	}
	want := binary.LittleEndian.Uint32(data[4:8])
	body := data[8:]
	if actual := checksum(body); actual != want {
		return nil, &CorruptError{
			Name:   name,
			Detail: "tombstone checksum mismatch",
			cause:  &ChecksumMismatchError{Expected: want, Actual: actual},
		}
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(body); err != nil {
		return nil, &CorruptError{Name: name, Detail: "tombstone bitmap does not decode", cause: err}
	}
	return bm, nil
}

// SaveTombstones writes the deletion sidecar of a segment at the given
// tombstone generation. Writing is not publication: the sidecar stays
// invisible until a manifest referencing its generation is published.
func SaveTombstones(ctx context.Context, store blobstore.BlobStore, id model.SegmentID, gen uint64, bm *roaring.Bitmap) error {
	data, err := encodeTombstones(bm)
	if err != nil {
		return err
	}
	return store.Put(ctx, TombstoneName(id, gen), data)
}
