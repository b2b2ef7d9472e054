package plugin

import (
	"fmt"
	"strings"

	"github.com/lcx/keel/codec"
	"github.com/lcx/keel/utils"
)

// Attribute is a typed key/value pair attached to a declaration. Attributes
// are carried into the plugin context and are queryable through the finder.
type Attribute struct {
	Key   string `json:"key" yaml:"key"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Value any    `json:"value" yaml:"value"`
}

// MetadataRequirement names a factory metadata key the plugin needs before it
// can be built, with an optional value type constraint.
type MetadataRequirement struct {
	Key  string `json:"key" yaml:"key"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Declaration is the manifest record describing one plugin: its class
// identity, wiring, and lifecycle hints. The presence of a declaration under
// the top level "plugin" key is what marks a candidate as a plugin.
type Declaration struct {
	// Class is the fully qualified "pkg/path.TypeName" identity.
	Class string `json:"class" yaml:"class"`
	// Name is a human readable handle; defaults to the class string.
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Categories names the plugin categories this plugin belongs to.
	// Unknown categories are created on first use with pass-through
	// acceptance.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	// Dependencies lists fully qualified classes that must be running
	// before this plugin starts.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// Strategy selects the initializer strategy; empty means "construct".
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	// FactoryRef binds the "factory" strategy to a "pkg.Class#Method"
	// producer on another class.
	FactoryRef string `json:"factoryRef,omitempty" yaml:"factoryRef,omitempty"`
	// Priority orders plugins whose dependencies are equally satisfied;
	// lower starts first.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
	// AutoClose opts the plugin into shutdown-hook teardown; nil means
	// true.
	AutoClose  *bool                 `json:"autoClose,omitempty" yaml:"autoClose,omitempty"`
	Attributes []Attribute           `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Metadata   []MetadataRequirement `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// manifestDoc is the on-disk manifest shape. The "plugin" key is the marker;
// documents without it are not plugin manifests.
type manifestDoc struct {
	Plugin *Declaration `json:"plugin" yaml:"plugin"`
}

// DecodeManifest parses manifest bytes named name. It returns (nil, nil) for
// well-formed documents that do not carry the plugin marker.
func DecodeManifest(name string, data []byte) (*Declaration, error) {
	var doc manifestDoc
	c := codec.ForName(name)
	if name == "" {
		c = codec.Sniff(data)
	}
	if err := c.Decode(data, &doc); err != nil {
		return nil, err
	}
	return doc.Plugin, nil
}

// EncodeManifest serializes a declaration as a manifest document.
func EncodeManifest(d *Declaration) ([]byte, error) {
	return codec.Encode(&manifestDoc{Plugin: d})
}

// ClassRef parses the declaration's class identity. Zero on malformed input;
// use Validate for the error.
func (d *Declaration) ClassRef() Class {
	c, err := ParseClass(d.Class)
	if err != nil {
		return Class{}
	}
	return c
}

// EffectiveName is the declared name, falling back to the class string.
func (d *Declaration) EffectiveName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Class
}

// EffectiveStrategy is the declared strategy, falling back to "construct".
func (d *Declaration) EffectiveStrategy() string {
	if d.Strategy != "" {
		return d.Strategy
	}
	return StrategyConstruct
}

// EffectiveAutoClose is the declared auto-close flag, defaulting to true.
func (d *Declaration) EffectiveAutoClose() bool {
	return d.AutoClose == nil || *d.AutoClose
}

// DependencyClasses parses and de-duplicates the declared dependencies,
// preserving first-mention order.
func (d *Declaration) DependencyClasses() ([]Class, error) {
	if len(d.Dependencies) == 0 {
		return nil, nil
	}
	seen := make(map[Class]bool, len(d.Dependencies))
	out := make([]Class, 0, len(d.Dependencies))
	for _, fqn := range d.Dependencies {
		c, err := ParseClass(fqn)
		if err != nil {
			return nil, &DeclarationError{
				Class:  d.ClassRef(),
				Reason: fmt.Sprintf("bad dependency %q: %v", fqn, err),
			}
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// Validate checks the declaration's internal consistency. It does not check
// cross-declaration constraints such as mutual dependencies; those belong to
// the builder.
func (d *Declaration) Validate() error {
	self, err := ParseClass(d.Class)
	if err != nil {
		return &DeclarationError{Reason: fmt.Sprintf("bad class %q: %v", d.Class, err)}
	}
	deps, err := d.DependencyClasses()
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if dep == self {
			return &DeclarationError{Class: self, Reason: "depends on itself"}
		}
	}
	if d.Strategy == StrategyFactory && d.FactoryRef != "" {
		if _, _, err := utils.SplitMethodRef(d.FactoryRef); err != nil {
			return &DeclarationError{Class: self, Reason: err.Error()}
		}
	}
	for _, a := range d.Attributes {
		if strings.TrimSpace(a.Key) == "" {
			return &DeclarationError{Class: self, Reason: "attribute with empty key"}
		}
	}
	for _, m := range d.Metadata {
		if strings.TrimSpace(m.Key) == "" {
			return &DeclarationError{Class: self, Reason: "metadata requirement with empty key"}
		}
	}
	return nil
}
