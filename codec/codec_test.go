package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirixgo/sirixgo/codec"
)

func TestIdentityRoundTrip(t *testing.T) {
	c, err := codec.For(codec.Identity)
	require.NoError(t, err)

	src := []byte("hello page bytes")
	compressed, err := c.Compress(nil, src)
	require.NoError(t, err)

	dst := make([]byte, len(src))
	n, err := c.Decompress(dst, compressed)
	require.NoError(t, err)
	require.Equal(t, src, dst[:n])
}

func TestLZ4RoundTrip(t *testing.T) {
	c, err := codec.For(codec.LZ4)
	require.NoError(t, err)

	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i % 7) // compressible, repetitive payload
	}

	compressed, err := c.Compress(nil, src)
	require.NoError(t, err)
	require.NotEmpty(t, compressed)

	dst := make([]byte, len(src))
	n, err := c.Decompress(dst, compressed)
	require.NoError(t, err)
	require.Equal(t, src, dst[:n])
}

func TestUnknownCodecNameErrors(t *testing.T) {
	_, err := codec.For("bogus")
	require.Error(t, err)
}
