package postgres

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression names the encoding of a stored payload.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// DefaultCompressThreshold is the payload size above which submissions are compressed.
const DefaultCompressThreshold = 10 * 1024

// PayloadCodec compresses large JSON payloads with zstd. Small ones are
// stored as-is so they stay queryable as jsonb.
type PayloadCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewPayloadCodec builds a codec; threshold <= 0 uses DefaultCompressThreshold.
func NewPayloadCodec(threshold int) (*PayloadCodec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &PayloadCodec{encoder: enc, decoder: dec, threshold: threshold}, nil
}

// Encode returns either the raw payload or its compressed form, never both.
func (c *PayloadCodec) Encode(payload []byte) (raw, compressed []byte, algo Compression) {
	if len(payload) <= c.threshold {
		return payload, nil, CompressionNone
	}
	return nil, c.encoder.EncodeAll(payload, nil), CompressionZstd
}

// Decode reverses Encode.
func (c *PayloadCodec) Decode(raw, compressed []byte, algo Compression) ([]byte, error) {
	if algo != CompressionZstd || len(compressed) == 0 {
		return raw, nil
	}
	out, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return out, nil
}
