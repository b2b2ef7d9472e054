package plugin

import (
	"fmt"
	"strings"
)

// Builder stages one declaration on its way to becoming a Record. Handlers
// may mutate a builder (rename it, add categories or dependencies, change
// priority) before the driver finalizes it; Build freezes the staged shape
// into an immutable record.
type Builder struct {
	factory *Factory
	loader  *Loader
	decl    *Declaration
	ctx     *Context

	class      Class
	name       string
	desc       string
	strategy   string
	factoryRef string
	priority   int
	autoClose  bool
	deps       []Class
	catNames   []string
}

// NewBuilder stages a validated declaration. Cross-declaration constraints
// visible through the loader, such as a direct mutual dependency, are
// rejected here.
func NewBuilder(f *Factory, d *Declaration, ldr *Loader, ctx *Context) (*Builder, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	self := d.ClassRef()
	deps, err := d.DependencyClasses()
	if err != nil {
		return nil, err
	}
	if ldr != nil {
		for _, dep := range deps {
			other, ok := ldr.Lookup(dep)
			if !ok {
				continue
			}
			otherDeps, err := other.DependencyClasses()
			if err != nil {
				continue
			}
			for _, od := range otherDeps {
				if od == self {
					return nil, &DeclarationError{
						Class:  self,
						Reason: fmt.Sprintf("mutual dependency with %s", dep),
					}
				}
			}
		}
	}
	return &Builder{
		factory:    f,
		loader:     ldr,
		decl:       d,
		ctx:        ctx,
		class:      self,
		name:       d.EffectiveName(),
		desc:       d.Description,
		strategy:   d.EffectiveStrategy(),
		factoryRef: d.FactoryRef,
		priority:   d.Priority,
		autoClose:  d.EffectiveAutoClose(),
		deps:       deps,
		catNames:   append([]string(nil), d.Categories...),
	}, nil
}

// Class returns the staged class identity.
func (b *Builder) Class() Class { return b.class }

// Name returns the staged name.
func (b *Builder) Name() string { return b.name }

// SetName renames the staged plugin.
func (b *Builder) SetName(name string) { b.name = name }

// Description returns the staged description.
func (b *Builder) Description() string { return b.desc }

// SetDescription replaces the staged description.
func (b *Builder) SetDescription(desc string) { b.desc = desc }

// Strategy returns the staged initializer strategy name.
func (b *Builder) Strategy() string { return b.strategy }

// SetStrategy replaces the staged initializer strategy.
func (b *Builder) SetStrategy(name string) { b.strategy = name }

// Priority returns the staged start priority.
func (b *Builder) Priority() int { return b.priority }

// SetPriority replaces the staged start priority.
func (b *Builder) SetPriority(p int) { b.priority = p }

// AutoClose reports the staged auto-close flag.
func (b *Builder) AutoClose() bool { return b.autoClose }

// SetAutoClose replaces the staged auto-close flag.
func (b *Builder) SetAutoClose(v bool) { b.autoClose = v }

// Dependencies returns the staged dependency classes.
func (b *Builder) Dependencies() []Class {
	out := make([]Class, len(b.deps))
	copy(out, b.deps)
	return out
}

// AddDependency appends a dependency class, de-duplicating.
func (b *Builder) AddDependency(c Class) error {
	if c == b.class {
		return &DeclarationError{Class: b.class, Reason: "depends on itself"}
	}
	for _, d := range b.deps {
		if d == c {
			return nil
		}
	}
	b.deps = append(b.deps, c)
	return nil
}

// CategoryNames returns the staged category names.
func (b *Builder) CategoryNames() []string {
	out := make([]string, len(b.catNames))
	copy(out, b.catNames)
	return out
}

// AddCategory appends a category name, de-duplicating case-insensitively.
func (b *Builder) AddCategory(name string) {
	for _, n := range b.catNames {
		if strings.EqualFold(n, name) {
			return
		}
	}
	b.catNames = append(b.catNames, name)
}

// Context returns the staged load context.
func (b *Builder) Context() *Context { return b.ctx }

// Declaration returns the declaration being staged.
func (b *Builder) Declaration() *Declaration { return b.decl }

// Build freezes the builder into a Record. Every staged dependency must
// already be registered with the factory, either from an earlier load or
// earlier in the current batch, and every declared metadata requirement must
// be satisfied by the factory metadata store.
func (b *Builder) Build() (*Record, error) {
	for _, m := range b.decl.Metadata {
		v, ok := b.factory.Metadata(m.Key)
		if !ok {
			return nil, &DeclarationError{
				Class:  b.class,
				Reason: fmt.Sprintf("required metadata %q missing", m.Key),
			}
		}
		if !metadataTypeMatches(v, m.Type) {
			return nil, &DeclarationError{
				Class:  b.class,
				Reason: fmt.Sprintf("metadata %q is not a %s", m.Key, m.Type),
			}
		}
	}

	deps := make([]*Record, 0, len(b.deps))
	for _, c := range b.deps {
		dep, ok := b.factory.Get(c)
		if !ok {
			return nil, &DependencyError{Stuck: []Class{b.class, c}}
		}
		deps = append(deps, dep)
	}

	cats := make([]*Category, 0, len(b.catNames))
	for _, n := range b.catNames {
		cats = append(cats, b.factory.Category(n))
	}

	return &Record{
		factory:    b.factory,
		class:      b.class,
		name:       b.name,
		desc:       b.desc,
		strategy:   b.strategy,
		factoryRef: b.factoryRef,
		priority:   b.priority,
		autoClose:  b.autoClose,
		ctx:        b.ctx,
		decl:       b.decl,
		deps:       deps,
		categories: cats,
		catNames:   b.CategoryNames(),
	}, nil
}

// Target implementation.

func (b *Builder) TargetClass() Class          { return b.class }
func (b *Builder) TargetName() string          { return b.name }
func (b *Builder) TargetPriority() int         { return b.priority }
func (b *Builder) TargetCategories() []string  { return b.CategoryNames() }
func (b *Builder) TargetDependencies() []Class { return b.Dependencies() }

// OrderNode implementation.

func (b *Builder) NodeClass() Class   { return b.class }
func (b *Builder) DependsOn() []Class { return b.Dependencies() }
func (b *Builder) NodePriority() int  { return b.priority }

func metadataTypeMatches(v any, typ string) bool {
	switch typ {
	case "":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "bool":
		_, ok := v.(bool)
		return ok
	case "int":
		switch v.(type) {
		case int, int8, int16, int32, int64:
			return true
		}
		return false
	case "float":
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	case "class":
		switch c := v.(type) {
		case Class:
			return !c.IsZero()
		case string:
			_, err := ParseClass(c)
			return err == nil
		}
		return false
	default:
		return false
	}
}

