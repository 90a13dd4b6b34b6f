// Package compress wraps Zstandard compression. One decoder is created
// lazily and shared by every Decompress call; Compress creates a new encoder
// per call and closes it before returning.
package compress

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/cxparchive/cxp/internal/cxperr"
)

// DefaultLevel is the Zstandard compression level used on write.
const DefaultLevel = 3

var levelToEncoderLevel = map[int]zstd.EncoderLevel{
	1: zstd.SpeedFastest,
	3: zstd.SpeedDefault,
	9: zstd.SpeedBetterCompression,
	22: zstd.SpeedBestCompression,
}

var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
	})
	return decoder, decoderErr
}

// Compress compresses data at level, returning an error wrapping
// ErrCodeCompressFailed on failure. Compressing an empty slice is valid and
// returns a valid (small) zstd frame.
func Compress(data []byte, level int) ([]byte, error) {
	encLevel, ok := levelToEncoderLevel[level]
	if !ok {
		encLevel = zstd.SpeedDefault
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, cxperr.New(cxperr.ErrCodeCompressFailed, "create zstd encoder", err)
	}
	defer enc.Close()

	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// Decompress restores the exact original bytes produced by Compress.
func Decompress(data []byte) ([]byte, error) {
	dec, err := sharedDecoder()
	if err != nil {
		return nil, cxperr.New(cxperr.ErrCodeDecompressFailed, "create zstd decoder", err)
	}

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, cxperr.New(cxperr.ErrCodeDecompressFailed, "decode zstd frame", err)
	}
	return out, nil
}
