package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses blocks with lz4. The uncompressed size is prefixed as a
// uvarint because lz4 block decoding needs the destination size up front.
type LZ4 struct{}

var _ Codec = LZ4{}

// Compress implements Codec.
func (LZ4) Compress(data []byte) ([]byte, error) {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(data)))

	dst := make([]byte, n+lz4.CompressBlockBound(len(data)))
	copy(dst, hdr[:n])

	var c lz4.Compressor
	written, err := c.CompressBlock(data, dst[n:])
	if err != nil {
		return nil, err
	}
	if written == 0 {
		// Incompressible; lz4 signals this with zero output. Fall back
		// to storing the raw bytes after the size prefix.
		dst = append(dst[:n], data...)
		return dst, nil
	}
	return dst[:n+written], nil
}

// Decompress implements Codec.
func (LZ4) Decompress(data []byte) ([]byte, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("lz4: invalid block header")
	}
	src := data[n:]
	if uint64(len(src)) == size {
		// Stored raw (incompressible block).
		out := make([]byte, size)
		copy(out, src)
		return out, nil
	}
	out := make([]byte, size)
	written, err := lz4.UncompressBlock(src, out)
	if err != nil {
		return nil, err
	}
	return out[:written], nil
}

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }
