package codec

import "gopkg.in/yaml.v3"

// YAMLCodec reads and writes YAML manifests.
type YAMLCodec struct{}

func (*YAMLCodec) Name() string { return "yaml" }

func (*YAMLCodec) Encode(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (*YAMLCodec) Decode(b []byte, v any) error {
	return yaml.Unmarshal(b, v)
}
