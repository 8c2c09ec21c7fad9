// Package serialize implements the pluggable wire-encoding surface.
// Rather than an open-ended interface registry with dynamic dispatch, it
// uses a small tagged variant (Kind) covering the encodings twotier
// supports, plus an optional compression wrapper for large values.
package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Kind selects the wire encoding.
type Kind int

const (
	// JSON encodes with encoding/json. Human-readable, the safe default.
	JSON Kind = iota
	// Binary encodes with msgpack. Denser, faster; opaque on the wire.
	Binary
)

func (k Kind) String() string {
	switch k {
	case JSON:
		return "json"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseKind decodes a config string ("json" / "binary") into a Kind. An
// empty string selects JSON; any other value is rejected with an error.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "json", "":
		return JSON, nil
	case "binary":
		return Binary, nil
	default:
		return 0, fmt.Errorf("serialize: unknown serializer kind %q", s)
	}
}

// Serializer encodes and decodes Go values to and from cache bytes.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}

// New builds a Serializer for kind, optionally wrapping it with zstd
// compression. Compression is applied after encoding and transparently
// reversed before decoding, so callers never see compressed bytes.
func New(kind Kind, compress bool) (Serializer, error) {
	var base Serializer
	switch kind {
	case JSON:
		base = jsonSerializer{}
	case Binary:
		base = binarySerializer{}
	default:
		return nil, fmt.Errorf("serialize: unknown kind %d", kind)
	}
	if !compress {
		return base, nil
	}
	return newCompressed(base)
}

type jsonSerializer struct{}

func (jsonSerializer) Serialize(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize: json encode: %w", err)
	}
	return b, nil
}

func (jsonSerializer) Deserialize(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("serialize: json decode: %w", err)
	}
	return nil
}

type binarySerializer struct{}

func (binarySerializer) Serialize(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize: msgpack encode: %w", err)
	}
	return b, nil
}

func (binarySerializer) Deserialize(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("serialize: msgpack decode: %w", err)
	}
	return nil
}

// compressed wraps another Serializer with zstd, using one shared encoder
// and decoder pair (both safe for concurrent use per the klauspost/compress
// docs) rather than allocating one per call.
type compressed struct {
	base Serializer
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newCompressed(base Serializer) (Serializer, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("serialize: init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("serialize: init zstd decoder: %w", err)
	}
	return &compressed{base: base, enc: enc, dec: dec}, nil
}

func (c *compressed) Serialize(v any) ([]byte, error) {
	raw, err := c.base.Serialize(v)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *compressed) Deserialize(data []byte, v any) error {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("serialize: zstd decode: %w", err)
	}
	return c.base.Deserialize(raw, v)
}

// Bytes is a Serializer for callers who already have []byte and just want
// it passed through unchanged — the common case for twotier, whose core
// API stores caller-opaque bytes rather than typed values. Declared here so
// callers needing the identity case don't reach for JSON needlessly.
type Bytes struct{}

func (Bytes) Serialize(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case io.Reader:
		return io.ReadAll(t)
	default:
		return nil, fmt.Errorf("serialize: Bytes requires []byte, got %T", v)
	}
}

func (Bytes) Deserialize(data []byte, v any) error {
	dst, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("serialize: Bytes requires *[]byte, got %T", v)
	}
	*dst = bytes.Clone(data)
	return nil
}
