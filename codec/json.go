package codec

import "encoding/json"

// JSONCodec reads and writes JSON manifests.
type JSONCodec struct{}

func (*JSONCodec) Name() string { return "json" }

func (*JSONCodec) Encode(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func (*JSONCodec) Decode(b []byte, v any) error {
	return json.Unmarshal(b, v)
}
