// Package embedstore implements the Embedding Store: the exact binary
// layouts for batches of quantized embeddings, independent of
// MessagePack so the (potentially large) vector payloads can be written and
// mapped as flat byte blobs rather than boxed into a generic encoder.
package embedstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cxparchive/cxp/internal/cxperr"
	"github.com/cxparchive/cxp/internal/quantize"
)

// EncodeBinaryBatch serializes a batch of binary embeddings as
// u32 N ‖ u32 D ‖ N × ceil(D/8) bytes, all little-endian. An empty batch
// encodes to an empty slice.
func EncodeBinaryBatch(batch []quantize.BinaryEmbedding) ([]byte, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	d := batch[0].Dimensions
	rowBytes := (d + 7) / 8
	buf := make([]byte, 8+len(batch)*rowBytes)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(batch)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(d))

	offset := 8
	for i, e := range batch {
		if e.Dimensions != d {
			return nil, cxperr.New(cxperr.ErrCodeDimensionMismatch,
				fmt.Sprintf("entry %d has dimension %d, batch dimension is %d", i, e.Dimensions, d), nil)
		}
		copy(buf[offset:offset+rowBytes], e.Bits)
		offset += rowBytes
	}
	return buf, nil
}

// DecodeBinaryBatch is the inverse of EncodeBinaryBatch. It validates the
// declared length matches the actual byte count and that every entry shares
// dimension D.
func DecodeBinaryBatch(data []byte) ([]quantize.BinaryEmbedding, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 8 {
		return nil, cxperr.New(cxperr.ErrCodeEmbeddingBlobCorrupt, "binary batch header truncated", nil)
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	d := int(binary.LittleEndian.Uint32(data[4:8]))
	rowBytes := (d + 7) / 8
	expected := 8 + n*rowBytes
	if len(data) != expected {
		return nil, cxperr.New(cxperr.ErrCodeEmbeddingBlobCorrupt,
			fmt.Sprintf("binary batch length %d, expected %d", len(data), expected), nil)
	}

	out := make([]quantize.BinaryEmbedding, n)
	offset := 8
	for i := 0; i < n; i++ {
		bits := make([]byte, rowBytes)
		copy(bits, data[offset:offset+rowBytes])
		out[i] = quantize.BinaryEmbedding{Bits: bits, Dimensions: d}
		offset += rowBytes
	}
	return out, nil
}

// EncodeInt8Batch serializes a batch of int8 embeddings as
// u32 N ‖ u32 D ‖ N × (f32 scale ‖ D signed bytes), all little-endian.
func EncodeInt8Batch(batch []quantize.Int8Embedding) ([]byte, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	d := len(batch[0].Values)
	rowBytes := 4 + d
	buf := make([]byte, 8+len(batch)*rowBytes)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(batch)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(d))

	offset := 8
	for i, e := range batch {
		if len(e.Values) != d {
			return nil, cxperr.New(cxperr.ErrCodeDimensionMismatch,
				fmt.Sprintf("entry %d has dimension %d, batch dimension is %d", i, len(e.Values), d), nil)
		}
		binary.LittleEndian.PutUint32(buf[offset:offset+4], math.Float32bits(e.Scale))
		for j, v := range e.Values {
			buf[offset+4+j] = byte(v)
		}
		offset += rowBytes
	}
	return buf, nil
}

// DecodeInt8Batch is the inverse of EncodeInt8Batch, with the same length
// and dimension validation as DecodeBinaryBatch.
func DecodeInt8Batch(data []byte) ([]quantize.Int8Embedding, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 8 {
		return nil, cxperr.New(cxperr.ErrCodeEmbeddingBlobCorrupt, "int8 batch header truncated", nil)
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	d := int(binary.LittleEndian.Uint32(data[4:8]))
	rowBytes := 4 + d
	expected := 8 + n*rowBytes
	if len(data) != expected {
		return nil, cxperr.New(cxperr.ErrCodeEmbeddingBlobCorrupt,
			fmt.Sprintf("int8 batch length %d, expected %d", len(data), expected), nil)
	}

	out := make([]quantize.Int8Embedding, n)
	offset := 8
	for i := 0; i < n; i++ {
		scale := math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
		values := make([]int8, d)
		for j := 0; j < d; j++ {
			values[j] = int8(data[offset+4+j])
		}
		out[i] = quantize.Int8Embedding{Values: values, Scale: scale}
		offset += rowBytes
	}
	return out, nil
}
