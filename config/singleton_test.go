package config

import (
	"errors"
	"sync"
	"testing"
)

// stubManager is a minimal ConfigManager for singleton swap tests.
type stubManager struct {
	closed bool
}

func (m *stubManager) LoadConfig(string, Config) error           { return nil }
func (m *stubManager) GetConfig(string) (Config, error)          { return nil, errors.New("not loaded") }
func (m *stubManager) SetBasePath(string)                        {}
func (m *stubManager) SetEnvironment(string)                     {}
func (m *stubManager) AddChangeListener(ConfigChangeListener)    {}
func (m *stubManager) RemoveChangeListener(ConfigChangeListener) {}
func (m *stubManager) NotifyConfigChanged(string, Config, Config) {
}
func (m *stubManager) Close() error { m.closed = true; return nil }

func TestGetInstanceIdentity(t *testing.T) {
	ResetInstance()
	defer ResetInstance()

	first := GetInstance()
	if first == nil {
		t.Fatal("GetInstance must not return nil")
	}
	if GetInstance() != first {
		t.Fatal("GetInstance must return the same manager")
	}

	var wg sync.WaitGroup
	got := make([]ConfigManager, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = GetInstance()
		}(i)
	}
	wg.Wait()
	for i, cm := range got {
		if cm != first {
			t.Fatalf("goroutine %d saw a different manager", i)
		}
	}
}

func TestSetInstanceForTesting(t *testing.T) {
	ResetInstance()
	defer ResetInstance()

	stub := &stubManager{}
	SetInstanceForTesting(stub)
	if GetInstance() != ConfigManager(stub) {
		t.Fatal("GetInstance must return the injected manager")
	}

	ResetInstance()
	if !stub.closed {
		t.Error("ResetInstance must close the discarded manager")
	}
	fresh := GetInstance()
	if fresh == ConfigManager(stub) || fresh == nil {
		t.Error("GetInstance must build a fresh manager after reset")
	}
}
