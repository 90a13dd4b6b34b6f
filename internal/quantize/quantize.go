// Package quantize implements the Quantizer: pure functions reducing a
// float32 embedding to a 1-bit-per-dimension BinaryEmbedding or an
// 8-bit-signed Int8Embedding, plus the similarity operations search and
// rescoring need.
package quantize

import (
	"math"
	"math/bits"
)

// BinaryEmbedding packs one bit per dimension: bit i is 1 iff the source
// float at index i was strictly positive.
type BinaryEmbedding struct {
	Bits       []byte
	Dimensions int
}

// Int8Embedding quantizes each dimension to a signed byte sharing one scale
//.
type Int8Embedding struct {
	Values []int8
	Scale  float32
}

// BinaryFromFloat sets bit i of the result iff f[i] > 0.0.
func BinaryFromFloat(f []float32) BinaryEmbedding {
	d := len(f)
	packed := make([]byte, (d+7)/8)
	for i, v := range f {
		if v > 0.0 {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	return BinaryEmbedding{Bits: packed, Dimensions: d}
}

// Int8FromFloat quantizes f to signed bytes sharing a single scale. On an
// all-zero input, scale is 1.0 and every value is zero.
func Int8FromFloat(f []float32) Int8Embedding {
	var maxAbs float32
	for _, v := range f {
		av := v
		if av < 0 {
			av = -av
		}
		if av > maxAbs {
			maxAbs = av
		}
	}

	scale := float32(1.0)
	if maxAbs != 0 {
		scale = maxAbs / 127
	}

	values := make([]int8, len(f))
	for i, v := range f {
		q := v / scale
		if q > 127 {
			q = 127
		} else if q < -128 {
			q = -128
		}
		values[i] = int8(math.Round(float64(q)))
	}
	return Int8Embedding{Values: values, Scale: scale}
}

// Hamming returns the sum of popcounts of a.Bits[i] XOR b.Bits[i].
func Hamming(a, b BinaryEmbedding) int {
	n := len(a.Bits)
	if len(b.Bits) < n {
		n = len(b.Bits)
	}
	total := 0
	for i := 0; i < n; i++ {
		total += bits.OnesCount8(a.Bits[i] ^ b.Bits[i])
	}
	return total
}

// Int8Dot approximates the dot product of the two original float vectors:
// sum(values_a[i]*values_b[i]) * scale_a * scale_b.
func Int8Dot(a, b Int8Embedding) float32 {
	n := len(a.Values)
	if len(b.Values) < n {
		n = len(b.Values)
	}
	var acc int32
	for i := 0; i < n; i++ {
		acc += int32(a.Values[i]) * int32(b.Values[i])
	}
	return float32(acc) * a.Scale * b.Scale
}

// Cosine returns the cosine similarity of two float32 vectors. On
// L2-normalized inputs this equals their inner product.
func Cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// L2Squared returns the squared Euclidean distance between a and b.
func L2Squared(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var acc float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		acc += d * d
	}
	return float32(acc)
}

// InnerProduct returns the raw dot product of a and b.
func InnerProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var acc float64
	for i := 0; i < n; i++ {
		acc += float64(a[i]) * float64(b[i])
	}
	return float32(acc)
}
