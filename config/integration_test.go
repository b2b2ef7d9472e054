package config

import (
	"testing"
	"time"
)

// Exercises the whole path an application takes: singleton manager, file
// load, watcher-driven reload, listener notification.
func TestSingletonEndToEnd(t *testing.T) {
	ResetInstance()
	t.Cleanup(ResetInstance)

	dir := t.TempDir()
	writeConfigFile(t, dir, "discovery.yaml", discoveryYAML)

	cm := GetInstance()
	cm.SetBasePath(dir)

	cfg := &discoveryConfig{}
	if err := cm.LoadConfig("discovery", cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ScanRate != 20 {
		t.Fatalf("scanrate = %d, want 20", cfg.ScanRate)
	}
	if GetInstance() != cm {
		t.Fatal("the singleton must stay stable across calls")
	}

	listener := &recordingListener{}
	cm.AddChangeListener(listener)
	writeConfigFile(t, dir, "discovery.yaml", "scanrate: 35\nscanburst: 9\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if listener.count() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if listener.count() == 0 {
		t.Fatal("reload was not observed through the singleton")
	}

	got, err := cm.GetConfig("discovery")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	reloaded := got.(*discoveryConfig)
	if reloaded.ScanRate != 35 || reloaded.ScanBurst != 9 {
		t.Errorf("unexpected reloaded throttle %d/%d", reloaded.ScanRate, reloaded.ScanBurst)
	}

	cm.RemoveChangeListener(listener)
	before := listener.count()
	cm.NotifyConfigChanged("discovery", reloaded, cfg)
	if listener.count() != before {
		t.Error("a removed listener must not be notified again")
	}
}
