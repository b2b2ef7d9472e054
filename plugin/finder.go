package plugin

import (
	"io"
	"reflect"
	"strings"

	"github.com/lcx/keel/scan"
	"github.com/lcx/keel/utils"
)

// AttributeFilter matches declared attributes by key, with optional type and
// value constraints. A nil Value matches any value.
type AttributeFilter struct {
	Key   string
	Type  string
	Value any
}

type pkgScope struct {
	path      string
	recursive bool
}

// Finder is a composable plugin query. Empty criteria match everything; each
// populated criterion must be satisfied, and within a criterion any listed
// value may match. The same finder serves three uses: filtering declarations
// during discovery, filtering live records, and driving a load.
type Finder struct {
	factory *Factory
	caller  string
	hook    bool

	loaders    []*Loader
	scopes     []pkgScope
	categories []string
	names      []string
	descs      []string
	deps       []Class
	dependants []Class
	strategies []string
	instances  []any
	states     []State
	metadata   []MetadataRequirement
	attrs      []AttributeFilter
	sources    []scan.Source
}

// In restricts discovery to the given loaders.
func (f *Finder) In(loaders ...*Loader) *Finder {
	f.loaders = append(f.loaders, loaders...)
	return f
}

// WithinPackage restricts matches to a package scope, optionally including
// sub-packages.
func (f *Finder) WithinPackage(pkg string, recursive bool) *Finder {
	f.scopes = append(f.scopes, pkgScope{path: pkg, recursive: recursive})
	return f
}

// WithCategories restricts matches to plugins in any of the categories.
func (f *Finder) WithCategories(names ...string) *Finder {
	f.categories = append(f.categories, names...)
	return f
}

// WithNames restricts matches by effective name.
func (f *Finder) WithNames(names ...string) *Finder {
	f.names = append(f.names, names...)
	return f
}

// WithDescriptions restricts matches by exact description.
func (f *Finder) WithDescriptions(descs ...string) *Finder {
	f.descs = append(f.descs, descs...)
	return f
}

// DependingOn restricts matches to plugins that declare a dependency on any
// of the classes.
func (f *Finder) DependingOn(classes ...Class) *Finder {
	f.deps = append(f.deps, classes...)
	return f
}

// DependedOnBy restricts record matches to plugins that have a dependant of
// any of the classes. Declaration-level matching ignores this criterion.
func (f *Finder) DependedOnBy(classes ...Class) *Finder {
	f.dependants = append(f.dependants, classes...)
	return f
}

// WithStrategies restricts matches by initializer strategy.
func (f *Finder) WithStrategies(names ...string) *Finder {
	f.strategies = append(f.strategies, names...)
	return f
}

// WithInstances restricts record matches to records holding any of the given
// instances. Declaration-level matching ignores this criterion.
func (f *Finder) WithInstances(instances ...any) *Finder {
	f.instances = append(f.instances, instances...)
	return f
}

// InStates restricts record matches by lifecycle state. Declaration-level
// matching ignores this criterion.
func (f *Finder) InStates(states ...State) *Finder {
	f.states = append(f.states, states...)
	return f
}

// RequiringMetadata restricts matches to plugins declaring a metadata
// requirement for key, optionally of the given type.
func (f *Finder) RequiringMetadata(key, typ string) *Finder {
	f.metadata = append(f.metadata, MetadataRequirement{Key: key, Type: typ})
	return f
}

// WithAttribute restricts matches to plugins declaring a matching attribute.
func (f *Finder) WithAttribute(key, typ string, value any) *Finder {
	f.attrs = append(f.attrs, AttributeFilter{Key: key, Type: typ, Value: value})
	return f
}

// FromSources adds extra scan sources for this query on top of the factory's
// configured sources.
func (f *Finder) FromSources(sources ...scan.Source) *Finder {
	f.sources = append(f.sources, sources...)
	return f
}

// WithShutdownHook controls whether a successful Load registers the factory
// with the shutdown registrar. Defaults to true.
func (f *Finder) WithShutdownHook(v bool) *Finder {
	f.hook = v
	return f
}

// Caller returns the package that created the finder.
func (f *Finder) Caller() string { return f.caller }

// matchesIdentity checks the criteria that exist both on declarations and on
// records, against the effective values of either.
func (f *Finder) matchesIdentity(c Class, name, desc, strategy string, categories []string, deps []Class) bool {
	if c.IsZero() {
		return false
	}
	if len(f.scopes) > 0 {
		ok := false
		for _, s := range f.scopes {
			if utils.PackageWithin(c.Pkg, s.path, s.recursive) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.names) > 0 && !containsString(f.names, name, false) {
		return false
	}
	if len(f.descs) > 0 && !containsString(f.descs, desc, false) {
		return false
	}
	if len(f.categories) > 0 {
		ok := false
		for _, have := range categories {
			if containsString(f.categories, have, true) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.strategies) > 0 && !containsString(f.strategies, strategy, false) {
		return false
	}
	if len(f.deps) > 0 {
		ok := false
		for _, have := range deps {
			for _, want := range f.deps {
				if have == want {
					ok = true
					break
				}
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// matchesManifest checks the declaration-carried criteria: metadata
// requirements and attributes. Handlers cannot mutate these.
func (f *Finder) matchesManifest(d *Declaration) bool {
	for _, want := range f.metadata {
		ok := false
		for _, have := range d.Metadata {
			if have.Key == want.Key && (want.Type == "" || have.Type == want.Type) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, want := range f.attrs {
		ok := false
		for _, have := range d.Attributes {
			if have.Key != want.Key {
				continue
			}
			if want.Type != "" && have.Type != want.Type {
				continue
			}
			if want.Value != nil && !reflect.DeepEqual(have.Value, want.Value) {
				continue
			}
			ok = true
			break
		}
		if !ok {
			return false
		}
	}
	return true
}

// Matches reports whether a declaration satisfies every structural criterion.
// Record-only criteria (states, instances, dependants) are ignored.
func (f *Finder) Matches(d *Declaration) bool {
	deps, err := d.DependencyClasses()
	if err != nil {
		return false
	}
	return f.matchesIdentity(d.ClassRef(), d.EffectiveName(), d.Description,
		d.EffectiveStrategy(), d.Categories, deps) &&
		f.matchesManifest(d)
}

// MatchesRecord reports whether a live record satisfies every criterion,
// including record-only ones. Identity criteria see the record's effective
// values, which handlers may have changed during load.
func (f *Finder) MatchesRecord(r *Record) bool {
	if !f.matchesIdentity(r.Class(), r.Name(), r.Description(), r.Strategy(),
		r.TargetCategories(), r.TargetDependencies()) {
		return false
	}
	if !f.matchesManifest(r.Declaration()) {
		return false
	}
	if len(f.states) > 0 {
		ok := false
		for _, s := range f.states {
			if r.State() == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.instances) > 0 {
		ok := false
		inst := r.Instance()
		for _, want := range f.instances {
			if sameInstance(inst, want) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.dependants) > 0 {
		ok := false
		for _, d := range r.Dependants() {
			for _, want := range f.dependants {
				if d.Class() == want {
					ok = true
					break
				}
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Declarations discovers matching declarations: first from the loaders'
// defined universes, then by scanning the configured sources. Duplicate
// classes keep the first occurrence.
func (f *Finder) Declarations() ([]*Declaration, error) {
	seen := make(map[Class]bool)
	var out []*Declaration
	collect := func(d *Declaration) {
		c := d.ClassRef()
		if seen[c] {
			return
		}
		seen[c] = true
		out = append(out, d)
	}

	for _, ldr := range f.searchLoaders() {
		for _, d := range ldr.Declarations() {
			if f.Matches(d) {
				collect(d)
			}
		}
	}

	scanner := f.factory.scanner(f.sources)
	defineTo := f.defineLoader()
	err := scanner.Scan(func(name string, r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return scan.SourceFailure(err)
		}
		d, err := classify(name, data, f)
		if err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		if err := defineTo.Define(d); err != nil {
			return err
		}
		collect(d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Classes discovers the classes of all matching declarations.
func (f *Finder) Classes() ([]Class, error) {
	decls, err := f.Declarations()
	if err != nil {
		return nil, err
	}
	out := make([]Class, 0, len(decls))
	for _, d := range decls {
		out = append(out, d.ClassRef())
	}
	return out, nil
}

// Records returns the registered records matching every criterion, in
// registration order.
func (f *Finder) Records() []*Record {
	var out []*Record
	for _, r := range f.factory.Plugins() {
		if f.MatchesRecord(r) {
			out = append(out, r)
		}
	}
	return out
}

// Load discovers, builds, and starts every matching plugin in dependency and
// priority order. The optional predicate makes the final call per
// declaration after all criteria matched. It returns the records registered
// by this load, including any left idle by handler rejection.
func (f *Finder) Load(predicate func(*Declaration) bool) ([]*Record, error) {
	return f.factory.load(f, predicate)
}

func (f *Finder) searchLoaders() []*Loader {
	if len(f.loaders) > 0 {
		return f.loaders
	}
	return f.factory.Loaders()
}

// defineLoader is where scan-discovered declarations are defined: the first
// restricted loader, or the process loader.
func (f *Finder) defineLoader() *Loader {
	if len(f.loaders) > 0 {
		return f.loaders[0]
	}
	return ProcessLoader()
}

func containsString(set []string, v string, fold bool) bool {
	for _, s := range set {
		if s == v || (fold && strings.EqualFold(s, v)) {
			return true
		}
	}
	return false
}

// sameInstance compares instances with == when the value is comparable,
// falling back to pointer-style inequality otherwise.
func sameInstance(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if !ta.Comparable() {
		return false
	}
	return a == b
}
