// Package codec decodes and encodes plugin manifest documents.
package codec

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	errCodecNotInit = errors.New("codec not init")

	_codec Codec = &JSONCodec{}
)

// Codec converts between manifest bytes and declaration values.
type Codec interface {
	Name() string
	Encode(v any) ([]byte, error)
	Decode(b []byte, v any) error
}

// Encode serializes v with the default codec.
func Encode(v any) ([]byte, error) {
	if _codec == nil {
		return nil, errCodecNotInit
	}
	return _codec.Encode(v)
}

// Decode deserializes b into v with the default codec.
func Decode(b []byte, v any) error {
	if _codec == nil {
		return errCodecNotInit
	}
	return _codec.Decode(b, v)
}

// SetCodec replaces the default codec.
func SetCodec(c Codec) {
	_codec = c
}

// ForName picks a codec from a manifest file name. JSON is the fallback for
// unknown extensions.
func ForName(name string) Codec {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return &YAMLCodec{}
	default:
		return &JSONCodec{}
	}
}

// Sniff picks a codec from the document's leading byte. Manifests produced by
// Encode always round-trip through the codec Sniff selects.
func Sniff(b []byte) Codec {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return &JSONCodec{}
		default:
			return &YAMLCodec{}
		}
	}
	return &JSONCodec{}
}
