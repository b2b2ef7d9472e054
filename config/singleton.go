package config

import "sync"

var (
	_instance   ConfigManager
	_instanceMu sync.Mutex
)

// GetInstance returns the process-wide configuration manager, creating it on
// first use.
func GetInstance() ConfigManager {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	if _instance == nil {
		_instance = NewConfigManager()
	}
	return _instance
}

// ResetInstance discards the singleton so the next GetInstance call creates a
// fresh manager. Intended for tests.
func ResetInstance() {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	if _instance != nil {
		_ = _instance.Close()
	}
	_instance = nil
}

// SetInstanceForTesting substitutes the singleton with a caller-supplied
// manager, typically a mock.
func SetInstanceForTesting(cm ConfigManager) {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	_instance = cm
}
