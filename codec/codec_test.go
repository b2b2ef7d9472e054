package codec

import (
	"testing"
)

type doc struct {
	Name  string   `json:"name" yaml:"name"`
	Tags  []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Count int      `json:"count" yaml:"count"`
}

func TestForName(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"plugin.json", "json"},
		{"plugin.yaml", "yaml"},
		{"plugin.yml", "yaml"},
		{"cache.plugin.JSON", "json"},
		{"noext", "json"},
	}
	for _, tt := range tests {
		if got := ForName(tt.file).Name(); got != tt.want {
			t.Errorf("ForName(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"json object", `{"name":"a"}`, "json"},
		{"json with leading whitespace", "\n\t {\"name\":\"a\"}", "json"},
		{"yaml document", "name: a\ncount: 1\n", "yaml"},
		{"empty", "", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff([]byte(tt.data)).Name(); got != tt.want {
				t.Errorf("Sniff(%q) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := doc{Name: "cache", Tags: []string{"infra"}, Count: 3}
	data, err := (&JSONCodec{}).Encode(&in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out doc
	if err := (&JSONCodec{}).Decode(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count || len(out.Tags) != 1 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestYAMLDecode(t *testing.T) {
	data := []byte("name: cache\ntags:\n  - infra\ncount: 3\n")
	var out doc
	if err := (&YAMLCodec{}).Decode(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Name != "cache" || out.Count != 3 || len(out.Tags) != 1 {
		t.Errorf("decode mismatch: %+v", out)
	}
}

func TestDefaultCodec(t *testing.T) {
	data, err := Encode(&doc{Name: "x"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out doc
	if err := Decode(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Name != "x" {
		t.Errorf("expected name x, got %q", out.Name)
	}
}
