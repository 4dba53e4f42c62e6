package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte(""),
		[]byte("a"),
		[]byte("the quick brown fox jumps over the lazy dog"),
		bytes.Repeat([]byte("lexgo "), 1024),
		{0x00, 0xff, 0x10, 0x80, 0x7f},
	}

	for _, c := range []Codec{None{}, S2{}, LZ4{}} {
		t.Run(c.Name(), func(t *testing.T) {
			for _, in := range payloads {
				enc, err := c.Compress(in)
				require.NoError(t, err)

				dec, err := c.Decompress(enc)
				require.NoError(t, err)
				assert.Equal(t, len(in), len(dec))
				assert.True(t, bytes.Equal(in, dec))
			}
		})
	}
}

func TestLZ4IncompressibleFallback(t *testing.T) {
	// High-entropy input that lz4 cannot shrink takes the raw path.
	in := make([]byte, 512)
	for i := range in {
		in[i] = byte(i*7 + i>>3)
	}

	enc, err := LZ4{}.Compress(in)
	require.NoError(t, err)

	dec, err := LZ4{}.Decompress(enc)
	require.NoError(t, err)
	assert.Equal(t, in, dec)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"none", "s2", "lz4"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("zstd")
	assert.False(t, ok)
}

func TestDefaultIsRegistered(t *testing.T) {
	c, ok := ByName(Default.Name())
	require.True(t, ok)
	assert.Equal(t, Default.Name(), c.Name())
}
