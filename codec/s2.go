package codec

import "github.com/klauspost/compress/s2"

// S2 compresses blocks with the s2 format (snappy-compatible, faster).
// Good default: cheap to decompress on every stored-field fetch.
type S2 struct{}

var _ Codec = S2{}

// Compress implements Codec.
func (S2) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

// Decompress implements Codec.
func (S2) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

// Name returns "s2".
func (S2) Name() string { return "s2" }
