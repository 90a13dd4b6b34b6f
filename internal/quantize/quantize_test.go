package quantize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryFromFloatSetsPositiveBits(t *testing.T) {
	b := BinaryFromFloat([]float32{1, -1, 0, 2.5})
	require.Equal(t, 4, b.Dimensions)
	// bit0=1, bit1=0, bit2=0 (0.0 is not strictly positive), bit3=1 -> 0b1001 = 9
	require.Equal(t, byte(0b1001), b.Bits[0])
}

func TestHammingSymmetryAndSelfZero(t *testing.T) {
	a := BinaryFromFloat([]float32{1, -1, 1, -1, 1, -1, 1, -1, 1})
	b := BinaryFromFloat([]float32{1, 1, -1, -1, 1, 1, -1, -1, -1})

	require.Equal(t, 0, Hamming(a, a))
	require.Equal(t, Hamming(a, b), Hamming(b, a))
	require.LessOrEqual(t, Hamming(a, b), a.Dimensions)
}

func TestInt8FromFloatAllZero(t *testing.T) {
	e := Int8FromFloat([]float32{0, 0, 0})
	require.Equal(t, float32(1.0), e.Scale)
	for _, v := range e.Values {
		require.Equal(t, int8(0), v)
	}
}

func TestInt8FromFloatScaleAndBounds(t *testing.T) {
	e := Int8FromFloat([]float32{127, -63.5, 0})
	require.GreaterOrEqual(t, e.Scale, float32(0))
	require.Equal(t, int8(127), e.Values[0])

	// reconstruction error bound: |dequant[i] - x[i]| <= scale
	for i, v := range []float32{127, -63.5, 0} {
		dq := float32(e.Values[i]) * e.Scale
		diff := dq - v
		if diff < 0 {
			diff = -diff
		}
		require.LessOrEqual(t, diff, e.Scale+1e-3)
	}
}

func TestInt8DotApproximatesFloatDot(t *testing.T) {
	a := Int8FromFloat([]float32{1, 2, 3})
	b := Int8FromFloat([]float32{1, 2, 3})
	got := Int8Dot(a, b)
	require.Greater(t, got, float32(0))
}

func TestCosineOfIdenticalVectorsIsOne(t *testing.T) {
	v := []float32{1, 2, 3}
	require.InDelta(t, 1.0, Cosine(v, v), 1e-5)
}

func TestCosineOfOrthogonalVectorsIsZero(t *testing.T) {
	require.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestL2SquaredZeroForIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	require.Equal(t, float32(0), L2Squared(v, v))
}

func TestInnerProduct(t *testing.T) {
	require.Equal(t, float32(32), InnerProduct([]float32{1, 2, 3}, []float32{4, 4, 8}))
}
