package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/keel/scan"
)

func storeDecl() *Declaration {
	return &Declaration{
		Class:      "example.com/app/stores.Redis",
		Name:       "redis",
		Categories: []string{"Stores", "caches"},
		Dependencies: []string{
			"example.com/app/net.Pool",
		},
		Strategy:   StrategyConstruct,
		Attributes: []Attribute{{Key: "tier", Type: "string", Value: "hot"}},
		Metadata:   []MetadataRequirement{{Key: "dsn", Type: "string"}},
	}
}

func TestFinderMatches(t *testing.T) {
	f := NewFactory()
	d := storeDecl()

	tests := []struct {
		name   string
		finder *Finder
		want   bool
	}{
		{"empty criteria", f.NewFinder(), true},
		{"package exact", f.NewFinder().WithinPackage("example.com/app/stores", false), true},
		{"package parent non recursive", f.NewFinder().WithinPackage("example.com/app", false), false},
		{"package parent recursive", f.NewFinder().WithinPackage("example.com/app", true), true},
		{"name match", f.NewFinder().WithNames("redis", "other"), true},
		{"name mismatch", f.NewFinder().WithNames("other"), false},
		{"category case fold", f.NewFinder().WithCategories("STORES"), true},
		{"category mismatch", f.NewFinder().WithCategories("queues"), false},
		{"strategy match", f.NewFinder().WithStrategies(StrategyConstruct), true},
		{"strategy mismatch", f.NewFinder().WithStrategies(StrategyNone), false},
		{"dependency match", f.NewFinder().DependingOn(MustParseClass("example.com/app/net.Pool")), true},
		{"dependency mismatch", f.NewFinder().DependingOn(MustParseClass("example.com/app/net.Server")), false},
		{"metadata key", f.NewFinder().RequiringMetadata("dsn", ""), true},
		{"metadata key and type", f.NewFinder().RequiringMetadata("dsn", "string"), true},
		{"metadata type mismatch", f.NewFinder().RequiringMetadata("dsn", "int"), false},
		{"attribute key", f.NewFinder().WithAttribute("tier", "", nil), true},
		{"attribute value", f.NewFinder().WithAttribute("tier", "string", "hot"), true},
		{"attribute value mismatch", f.NewFinder().WithAttribute("tier", "string", "cold"), false},
		{"combined criteria", f.NewFinder().WithCategories("caches").WithNames("redis"), true},
		{"combined with one miss", f.NewFinder().WithCategories("caches").WithNames("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.finder.Matches(d); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFinderDeclarationsFromLoader(t *testing.T) {
	f := NewFactory()
	ldr := NewLoader("finder-loader")
	require.NoError(t, ldr.Define(storeDecl()))
	other := &Declaration{Class: "example.com/app/queues.Kafka"}
	require.NoError(t, ldr.Define(other))

	classes, err := f.NewFinder().In(ldr).WithCategories("stores").Classes()
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "Redis", classes[0].Name)
}

func TestFinderScanDiscovery(t *testing.T) {
	root := t.TempDir()
	manifest := `{"plugin":{"class":"example.com/scanned.Worker","name":"worker","categories":["jobs"]}}`
	require.NoError(t, os.MkdirAll(filepath.Join(root, "worker"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "worker", "plugin.json"), []byte(manifest), 0o644))
	yamlManifest := "plugin:\n  class: example.com/scanned.Mailer\n  categories: [jobs]\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "worker", "mailer.plugin.yaml"), []byte(yamlManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "worker", "junk.plugin.json"), []byte("{not json"), 0o644))

	f := NewFactory()
	f.AddSource(scan.NewDirSource(root))
	ldr := NewLoader("scan-target")

	decls, err := f.NewFinder().In(ldr).WithCategories("jobs").Declarations()
	require.NoError(t, err)
	require.Len(t, decls, 2)

	// Scan-discovered declarations are defined on the finder's loader.
	_, ok := ldr.Lookup(MustParseClass("example.com/scanned.Worker"))
	assert.True(t, ok)
	_, ok = ldr.Lookup(MustParseClass("example.com/scanned.Mailer"))
	assert.True(t, ok)
}

func TestFinderScanFilterShortCircuit(t *testing.T) {
	root := t.TempDir()
	manifest := `{"plugin":{"class":"example.com/scanned.Worker","name":"worker"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "plugin.json"), []byte(manifest), 0o644))
	unmarked := `{"service":{"class":"example.com/scanned.NotAPlugin"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "other.plugin.json"), []byte(unmarked), 0o644))

	f := NewFactory()
	f.AddSource(scan.NewDirSource(root))

	classes, err := f.NewFinder().In(NewLoader("sc1")).WithNames("nobody").Classes()
	require.NoError(t, err)
	assert.Empty(t, classes)

	classes, err = f.NewFinder().In(NewLoader("sc2")).WithNames("worker").Classes()
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "Worker", classes[0].Name)
}

func TestFinderDuplicateClassFirstWins(t *testing.T) {
	root := t.TempDir()
	manifest := `{"plugin":{"class":"example.com/dup.Thing","name":"from-scan"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "plugin.json"), []byte(manifest), 0o644))

	f := NewFactory()
	f.AddSource(scan.NewDirSource(root))
	ldr := NewLoader("dup-loader")
	require.NoError(t, ldr.Define(&Declaration{Class: "example.com/dup.Thing", Name: "from-loader"}))

	decls, err := f.NewFinder().In(ldr).WithinPackage("example.com/dup", false).Declarations()
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "from-loader", decls[0].Name, "loader universe precedes scanning")
}

func TestFinderRecords(t *testing.T) {
	h := newHarness(t, "finderrecords")
	a := h.decl("Cache")
	a.Categories = []string{"stores"}
	h.define(a)
	b := h.decl("Queue")
	b.Categories = []string{"queues"}
	h.define(b)

	_, err := h.load()
	require.NoError(t, err)

	recs := h.factory.NewFinder().WithCategories("stores").Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "Cache", recs[0].Class().Name)

	running := h.factory.NewFinder().InStates(StateRunning).Records()
	assert.Len(t, running, 2)

	require.NoError(t, h.get("Queue").Close())
	running = h.factory.NewFinder().InStates(StateRunning).Records()
	assert.Len(t, running, 1)

	inst := h.get("Cache").Instance()
	byInstance := h.factory.NewFinder().WithInstances(inst).Records()
	require.Len(t, byInstance, 1)
	assert.Equal(t, "Cache", byInstance[0].Class().Name)

	byDependant := h.factory.NewFinder().DependedOnBy(h.class("Cache")).Records()
	assert.Empty(t, byDependant)
}

func TestClassifyValidationError(t *testing.T) {
	f := NewFactory()
	fd := f.NewFinder()
	// Marked manifest whose declaration depends on itself.
	data := []byte(`{"plugin":{"class":"example.com/bad.Loop","dependencies":["example.com/bad.Loop"]}}`)
	_, err := classify("plugin.json", data, fd)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDeclaration)
}
