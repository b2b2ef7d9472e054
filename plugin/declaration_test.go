package plugin

import (
	"errors"
	"testing"
)

func TestDeclarationDefaults(t *testing.T) {
	d := &Declaration{Class: "example.com/app.Cache"}
	if d.EffectiveName() != "example.com/app.Cache" {
		t.Errorf("name must default to class, got %q", d.EffectiveName())
	}
	if d.EffectiveStrategy() != StrategyConstruct {
		t.Errorf("strategy must default to construct, got %q", d.EffectiveStrategy())
	}
	if !d.EffectiveAutoClose() {
		t.Error("auto close must default to true")
	}

	off := false
	d = &Declaration{Class: "example.com/app.Cache", Name: "cache", AutoClose: &off}
	if d.EffectiveName() != "cache" || d.EffectiveAutoClose() {
		t.Error("explicit name and auto close must win")
	}
}

func TestDeclarationValidate(t *testing.T) {
	tests := []struct {
		name    string
		decl    Declaration
		wantErr bool
	}{
		{
			name: "minimal valid",
			decl: Declaration{Class: "example.com/app.Cache"},
		},
		{
			name:    "malformed class",
			decl:    Declaration{Class: "no-dot-here"},
			wantErr: true,
		},
		{
			name: "self dependency",
			decl: Declaration{
				Class:        "example.com/app.Cache",
				Dependencies: []string{"example.com/app.Cache"},
			},
			wantErr: true,
		},
		{
			name: "malformed dependency",
			decl: Declaration{
				Class:        "example.com/app.Cache",
				Dependencies: []string{"oops"},
			},
			wantErr: true,
		},
		{
			name: "bad factory ref",
			decl: Declaration{
				Class:      "example.com/app.Cache",
				Strategy:   StrategyFactory,
				FactoryRef: "no-hash",
			},
			wantErr: true,
		},
		{
			name: "empty attribute key",
			decl: Declaration{
				Class:      "example.com/app.Cache",
				Attributes: []Attribute{{Key: " ", Value: 1}},
			},
			wantErr: true,
		},
		{
			name: "empty metadata key",
			decl: Declaration{
				Class:    "example.com/app.Cache",
				Metadata: []MetadataRequirement{{Key: ""}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decl.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidDeclaration) {
					t.Errorf("expected ErrInvalidDeclaration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDependencyClassesDeduplicated(t *testing.T) {
	d := &Declaration{
		Class: "example.com/app.Web",
		Dependencies: []string{
			"example.com/app.Cache",
			"example.com/app.DB",
			"example.com/app.Cache",
		},
	}
	deps, err := d.DependencyClasses()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 deps, got %v", deps)
	}
	if deps[0].Name != "Cache" || deps[1].Name != "DB" {
		t.Errorf("expected first-mention order, got %v", deps)
	}
}

func TestDecodeManifest(t *testing.T) {
	d, err := DecodeManifest("plugin.json",
		[]byte(`{"plugin":{"class":"example.com/app.Cache","categories":["stores"]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil || d.Class != "example.com/app.Cache" || len(d.Categories) != 1 {
		t.Errorf("unexpected declaration %+v", d)
	}

	// Marker missing: well formed but not a plugin manifest.
	d, err = DecodeManifest("plugin.json", []byte(`{"other":{}}`))
	if err != nil || d != nil {
		t.Errorf("expected (nil, nil) for unmarked document, got (%v, %v)", d, err)
	}

	d, err = DecodeManifest("plugin.yaml",
		[]byte("plugin:\n  class: example.com/app.Cache\n  priority: 7\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil || d.Priority != 7 {
		t.Errorf("unexpected declaration %+v", d)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	in := &Declaration{
		Class:        "example.com/app.Cache",
		Name:         "cache",
		Categories:   []string{"stores"},
		Dependencies: []string{"example.com/app.DB"},
		Priority:     3,
	}
	data, err := EncodeManifest(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeManifest("", data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out == nil || out.Class != in.Class || out.Name != in.Name || out.Priority != 3 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
