package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("hello"),
		bytes.Repeat([]byte("content-defined chunking "), 1000),
	}

	for _, data := range cases {
		compressed, err := Compress(data, DefaultLevel)
		require.NoError(t, err)

		out, err := Decompress(compressed)
		require.NoError(t, err)
		require.True(t, bytes.Equal(data, out))
	}
}

func TestUnknownLevelFallsBackToDefault(t *testing.T) {
	_, err := Compress([]byte("x"), 99)
	require.NoError(t, err)
}
