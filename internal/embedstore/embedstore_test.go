package embedstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/quantize"
)

func TestEncodeDecodeBinaryBatchRoundTrip(t *testing.T) {
	batch := []quantize.BinaryEmbedding{
		quantize.BinaryFromFloat([]float32{1, -1, 1, -1, 1}),
		quantize.BinaryFromFloat([]float32{-1, -1, 1, 1, -1}),
	}
	data, err := EncodeBinaryBatch(batch)
	require.NoError(t, err)

	decoded, err := DecodeBinaryBatch(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, batch[0].Bits, decoded[0].Bits)
	require.Equal(t, batch[1].Bits, decoded[1].Bits)
	require.Equal(t, 5, decoded[0].Dimensions)
}

func TestEncodeBinaryBatchEmptyIsEmpty(t *testing.T) {
	data, err := EncodeBinaryBatch(nil)
	require.NoError(t, err)
	require.Nil(t, data)

	decoded, err := DecodeBinaryBatch(nil)
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestDecodeBinaryBatchRejectsWrongLength(t *testing.T) {
	// N=1, D=16 declares 8+2 bytes, but only 9 are present.
	_, err := DecodeBinaryBatch([]byte{1, 0, 0, 0, 16, 0, 0, 0, 0xFF})
	require.Error(t, err)
}

func TestEncodeDecodeInt8BatchRoundTrip(t *testing.T) {
	batch := []quantize.Int8Embedding{
		quantize.Int8FromFloat([]float32{1, 2, 3, -4}),
		quantize.Int8FromFloat([]float32{0, 0, 0, 0}),
	}
	data, err := EncodeInt8Batch(batch)
	require.NoError(t, err)

	decoded, err := DecodeInt8Batch(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, batch[0].Values, decoded[0].Values)
	require.InDelta(t, batch[0].Scale, decoded[0].Scale, 1e-6)
	require.Equal(t, float32(1.0), decoded[1].Scale)
}

func TestEncodeInt8BatchRejectsDimensionMismatch(t *testing.T) {
	batch := []quantize.Int8Embedding{
		{Values: []int8{1, 2, 3}, Scale: 1},
		{Values: []int8{1, 2}, Scale: 1},
	}
	_, err := EncodeInt8Batch(batch)
	require.Error(t, err)
}
