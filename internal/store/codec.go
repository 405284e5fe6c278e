package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Frame markers written as the first byte of every encoded value.
const (
	framePlain byte = 'j'
	frameZstd  byte = 'z'
)

// compressMin is the smallest payload worth compressing.
const compressMin = 1024

var ErrBadFrame = errors.New("unrecognized value frame")

// Codec turns values into bucket bytes and back. Every Marshal produces a
// fresh byte slice and every Unmarshal a fresh value, so cached values never
// alias the caller's.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec returns a codec compressing payloads of at least 1KB at the
// given zstd level. Level 0 disables compression; stored compressed values
// are still readable.
func NewCodec(level int) (*Codec, error) {
	c := &Codec{}
	if level > 0 {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		c.encoder = enc
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	c.decoder = dec
	return c, nil
}

func (c *Codec) Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if c.encoder != nil && len(raw) >= compressMin {
		compressed := c.encoder.EncodeAll(raw, []byte{frameZstd})
		if len(compressed) < len(raw) {
			return compressed, nil
		}
	}
	out := make([]byte, 0, len(raw)+1)
	out = append(out, framePlain)
	return append(out, raw...), nil
}

func (c *Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrBadFrame
	}
	switch data[0] {
	case framePlain:
		return json.Unmarshal(data[1:], v)
	case frameZstd:
		raw, err := c.decoder.DecodeAll(data[1:], nil)
		if err != nil {
			return fmt.Errorf("decompress value: %w", err)
		}
		return json.Unmarshal(raw, v)
	default:
		return fmt.Errorf("%w: %q", ErrBadFrame, data[0])
	}
}

func (c *Codec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	c.decoder.Close()
}
