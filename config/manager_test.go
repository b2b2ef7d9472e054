package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// discoveryConfig mirrors the framework's scan settings and serves as the
// manager test fixture.
type discoveryConfig struct {
	ScanRoots []string `mapstructure:"scanroots"`
	ScanRate  int      `mapstructure:"scanrate"`
	ScanBurst int      `mapstructure:"scanburst"`
}

func (c *discoveryConfig) GetName() string { return "discovery" }

func (c *discoveryConfig) Validate() error {
	if c.ScanRate < 0 {
		return fmt.Errorf("scanrate %d is negative", c.ScanRate)
	}
	return nil
}

type codecConfig struct {
	Default string `mapstructure:"default"`
}

func (c *codecConfig) GetName() string { return "codec" }

func (c *codecConfig) Validate() error {
	if c.Default == "" {
		return errors.New("default codec is required")
	}
	return nil
}

type recordingListener struct {
	changes int32
	fail    error

	mu      sync.Mutex
	lastNew Config
	lastOld Config
}

func (l *recordingListener) OnConfigChanged(name string, newCfg, oldCfg Config) error {
	atomic.AddInt32(&l.changes, 1)
	l.mu.Lock()
	l.lastNew, l.lastOld = newCfg, oldCfg
	l.mu.Unlock()
	return l.fail
}

func (l *recordingListener) count() int32 { return atomic.LoadInt32(&l.changes) }

func writeConfigFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const discoveryYAML = `scanroots:
  - ./plugins
  - ./extra
scanrate: 20
scanburst: 5
`

func newTestManager(t *testing.T, dir string) ConfigManager {
	t.Helper()
	cm := NewConfigManager()
	cm.SetBasePath(dir)
	t.Cleanup(func() { _ = cm.Close() })
	return cm
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "discovery.yaml", discoveryYAML)
	cm := newTestManager(t, dir)

	cfg := &discoveryConfig{}
	if err := cm.LoadConfig("discovery", cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.ScanRoots) != 2 || cfg.ScanRoots[0] != "./plugins" {
		t.Errorf("unexpected scan roots %v", cfg.ScanRoots)
	}
	if cfg.ScanRate != 20 || cfg.ScanBurst != 5 {
		t.Errorf("unexpected throttle %d/%d", cfg.ScanRate, cfg.ScanBurst)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cm := newTestManager(t, t.TempDir())
	if err := cm.LoadConfig("discovery", &discoveryConfig{}); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadConfigValidationFailure(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "discovery.yaml", "scanrate: -3\n")
	cm := newTestManager(t, dir)

	if err := cm.LoadConfig("discovery", &discoveryConfig{}); err == nil {
		t.Fatal("expected a validation error")
	}
	if _, err := cm.GetConfig("discovery"); err == nil {
		t.Error("an invalid config must not be registered")
	}
}

func TestGetConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "discovery.yaml", discoveryYAML)
	cm := newTestManager(t, dir)

	cfg := &discoveryConfig{}
	if err := cm.LoadConfig("discovery", cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	got, err := cm.GetConfig("discovery")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got != Config(cfg) {
		t.Error("GetConfig must return the loaded instance")
	}
	if _, err := cm.GetConfig("unknown"); err == nil {
		t.Error("unknown config name must error")
	}
}

func TestEnvironmentPath(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfigFile(t, staging, "discovery.yaml", "scanrate: 7\n")

	cm := newTestManager(t, dir)
	cm.SetEnvironment("staging")

	cfg := &discoveryConfig{}
	if err := cm.LoadConfig("discovery", cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ScanRate != 7 {
		t.Errorf("expected the staging file, got scanrate %d", cfg.ScanRate)
	}
}

func TestMultipleConfigs(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "discovery.yaml", discoveryYAML)
	writeConfigFile(t, dir, "codec.yaml", "default: yaml\n")
	cm := newTestManager(t, dir)

	if err := cm.LoadConfig("discovery", &discoveryConfig{}); err != nil {
		t.Fatalf("load discovery: %v", err)
	}
	codec := &codecConfig{}
	if err := cm.LoadConfig("codec", codec); err != nil {
		t.Fatalf("load codec: %v", err)
	}
	if codec.Default != "yaml" {
		t.Errorf("unexpected default codec %q", codec.Default)
	}
	if _, err := cm.GetConfig("discovery"); err != nil {
		t.Errorf("discovery must stay registered: %v", err)
	}
}

func TestChangeListeners(t *testing.T) {
	cm := newTestManager(t, t.TempDir())

	kept := &recordingListener{}
	removed := &recordingListener{}
	cm.AddChangeListener(kept)
	cm.AddChangeListener(removed)

	oldCfg := &discoveryConfig{ScanRate: 20}
	newCfg := &discoveryConfig{ScanRate: 40}
	cm.NotifyConfigChanged("discovery", newCfg, oldCfg)
	if kept.count() != 1 || removed.count() != 1 {
		t.Fatalf("both listeners must fire, got %d/%d", kept.count(), removed.count())
	}
	kept.mu.Lock()
	if kept.lastNew != Config(newCfg) || kept.lastOld != Config(oldCfg) {
		t.Error("listener must see the new and old values")
	}
	kept.mu.Unlock()

	cm.RemoveChangeListener(removed)
	cm.NotifyConfigChanged("discovery", newCfg, oldCfg)
	if kept.count() != 2 {
		t.Errorf("kept listener count = %d, want 2", kept.count())
	}
	if removed.count() != 1 {
		t.Errorf("removed listener count = %d, want 1", removed.count())
	}
}

func TestListenerErrorDoesNotStopOthers(t *testing.T) {
	cm := newTestManager(t, t.TempDir())

	failing := &recordingListener{fail: errors.New("refused")}
	after := &recordingListener{}
	cm.AddChangeListener(failing)
	cm.AddChangeListener(after)

	cm.NotifyConfigChanged("discovery", &discoveryConfig{}, &discoveryConfig{})
	if after.count() != 1 {
		t.Error("a listener error must not block later listeners")
	}
}

func TestHotReload(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "discovery.yaml", discoveryYAML)
	cm := newTestManager(t, dir)

	if err := cm.LoadConfig("discovery", &discoveryConfig{}); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	listener := &recordingListener{}
	cm.AddChangeListener(listener)

	writeConfigFile(t, dir, "discovery.yaml", "scanrate: 40\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if listener.count() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if listener.count() == 0 {
		t.Fatal("file change was not picked up")
	}

	got, err := cm.GetConfig("discovery")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	// The reload builds a fresh instance of the registered config's type.
	reloaded, ok := got.(*discoveryConfig)
	if !ok {
		t.Fatalf("reloaded config has type %T", got)
	}
	if reloaded.ScanRate != 40 {
		t.Errorf("scanrate = %d, want 40", reloaded.ScanRate)
	}
}

func TestHotReloadKeepsOldConfigOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "discovery.yaml", discoveryYAML)
	cm := newTestManager(t, dir)

	if err := cm.LoadConfig("discovery", &discoveryConfig{}); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	listener := &recordingListener{}
	cm.AddChangeListener(listener)

	writeConfigFile(t, dir, "discovery.yaml", "scanrate: -9\n")
	time.Sleep(1500 * time.Millisecond)

	if listener.count() != 0 {
		t.Error("a config failing validation must not be announced")
	}
	got, err := cm.GetConfig("discovery")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got.(*discoveryConfig).ScanRate != 20 {
		t.Errorf("old config must stay active, got scanrate %d", got.(*discoveryConfig).ScanRate)
	}
}

func TestDecode(t *testing.T) {
	cfg := &discoveryConfig{}
	err := Decode(map[string]any{
		"scanroots": []any{"./a", "./b"},
		"scanrate":  "15", // weakly typed input
	}, cfg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(cfg.ScanRoots) != 2 || cfg.ScanRoots[1] != "./b" {
		t.Errorf("unexpected roots %v", cfg.ScanRoots)
	}
	if cfg.ScanRate != 15 {
		t.Errorf("scanrate = %d, want 15", cfg.ScanRate)
	}
}

func TestConfigManagerProvider(t *testing.T) {
	first := NewConfigManager()
	defer first.Close()
	second := NewConfigManager()
	defer second.Close()

	p := NewConfigManagerProvider(first)
	if p.GetConfigManager() != first {
		t.Error("provider must hand back the injected manager")
	}
	p.SetConfigManager(second)
	if p.GetConfigManager() != second {
		t.Error("provider must follow SetConfigManager")
	}
}
