package plugin

import (
	"github.com/google/uuid"

	"github.com/lcx/keel/config"
)

// Context carries per-plugin load information into initializer strategies:
// the load operation id, the calling package that triggered discovery, the
// finder that matched the plugin, declared attributes, and a view of the
// factory metadata store.
type Context struct {
	operation  uuid.UUID
	caller     string
	finder     *Finder
	factory    *Factory
	attributes map[string]any
}

func newContext(f *Factory, fd *Finder, op uuid.UUID, caller string, d *Declaration) *Context {
	attrs := make(map[string]any, len(d.Attributes))
	for _, a := range d.Attributes {
		attrs[a.Key] = a.Value
	}
	return &Context{
		operation:  op,
		caller:     caller,
		finder:     fd,
		factory:    f,
		attributes: attrs,
	}
}

// Operation returns the load operation id shared by every plugin loaded in
// the same batch.
func (c *Context) Operation() uuid.UUID { return c.operation }

// Caller returns the package that initiated the load.
func (c *Context) Caller() string { return c.caller }

// Finder returns the finder whose criteria matched this plugin. Nil for
// plugins loaded outside a finder query.
func (c *Context) Finder() *Finder { return c.finder }

// Factory returns the owning factory.
func (c *Context) Factory() *Factory { return c.factory }

// Attribute returns a declared attribute value by key.
func (c *Context) Attribute(key string) (any, bool) {
	v, ok := c.attributes[key]
	return v, ok
}

// Attributes returns a copy of the declared attributes.
func (c *Context) Attributes() map[string]any {
	out := make(map[string]any, len(c.attributes))
	for k, v := range c.attributes {
		out[k] = v
	}
	return out
}

// DecodeAttributes maps the declared attributes onto a typed struct through
// mapstructure tags, the same way file configuration is decoded.
func (c *Context) DecodeAttributes(output any) error {
	return config.Decode(c.attributes, output)
}

// Metadata reads a key from the factory metadata store at call time.
func (c *Context) Metadata(key string) (any, bool) {
	if c.factory == nil {
		return nil, false
	}
	return c.factory.Metadata(key)
}
