package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigManager loads named YAML configurations, validates them, watches the
// backing files, and notifies registered listeners when a file changes on
// disk.
type ConfigManager interface {
	LoadConfig(configName string, config Config) error
	GetConfig(configName string) (Config, error)
	SetBasePath(path string)
	SetEnvironment(env string)
	AddChangeListener(listener ConfigChangeListener)
	RemoveChangeListener(listener ConfigChangeListener)
	NotifyConfigChanged(configName string, newConfig, oldConfig Config)
	Close() error
}

// ConfigChangeListener receives reload notifications. A non-nil return keeps
// the previous configuration active for that listener's concern.
type ConfigChangeListener interface {
	OnConfigChanged(configName string, newConfig, oldConfig Config) error
}

// configManager implementation of ConfigManager interface
type configManager struct {
	mu        sync.RWMutex
	configs   map[string]Config
	watchers  map[string]*fsnotify.Watcher
	listeners []ConfigChangeListener
	basePath  string
	env       string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() ConfigManager {
	return &configManager{
		configs:  make(map[string]Config),
		watchers: make(map[string]*fsnotify.Watcher),
		basePath: "./configs",
		env:      "development",
	}
}

func (cm *configManager) newViper(configName string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.AddConfigPath(fmt.Sprintf("%s/%s", cm.basePath, cm.env))

	// Environment variables override file values.
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToUpper(configName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// LoadConfig loads configuration from file
func (cm *configManager) LoadConfig(configName string, config Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	v := cm.newViper(configName)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config failed: %w", err)
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config failed: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("validate config failed: %w", err)
	}

	cm.configs[configName] = config

	if err := cm.watchConfigFile(configName, v); err != nil {
		return fmt.Errorf("watch config file failed: %w", err)
	}

	return nil
}

// GetConfig retrieves a previously loaded configuration by name.
func (cm *configManager) GetConfig(configName string) (Config, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	config, exists := cm.configs[configName]
	if !exists {
		return nil, fmt.Errorf("config %s not found", configName)
	}
	return config, nil
}

// SetBasePath sets base path for configuration files
func (cm *configManager) SetBasePath(path string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.basePath = path
}

// SetEnvironment sets environment for configuration
func (cm *configManager) SetEnvironment(env string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.env = env
}

// AddChangeListener registers a reload listener.
func (cm *configManager) AddChangeListener(listener ConfigChangeListener) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.listeners = append(cm.listeners, listener)
}

// RemoveChangeListener deregisters a previously added listener.
func (cm *configManager) RemoveChangeListener(listener ConfigChangeListener) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.listeners = slices.DeleteFunc(cm.listeners, func(l ConfigChangeListener) bool {
		return l == listener
	})
}

// NotifyConfigChanged invokes every listener with the old and new values.
func (cm *configManager) NotifyConfigChanged(configName string, newConfig, oldConfig Config) {
	cm.mu.RLock()
	listeners := slices.Clone(cm.listeners)
	cm.mu.RUnlock()

	for _, l := range listeners {
		if err := l.OnConfigChanged(configName, newConfig, oldConfig); err != nil {
			fmt.Printf("config listener error for %s: %v\n", configName, err)
		}
	}
}

// watchConfigFile watches configuration file for changes
func (cm *configManager) watchConfigFile(configName string, v *viper.Viper) error {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		return nil
	}
	if _, exists := cm.watchers[configName]; exists {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	cm.watchers[configName] = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					cm.reloadConfig(configName)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Printf("config watcher error: %v\n", err)
			}
		}
	}()

	return watcher.Add(configFile)
}

// reloadConfig reloads configuration when the backing file changes
func (cm *configManager) reloadConfig(configName string) {
	cm.mu.Lock()

	oldConfig, exists := cm.configs[configName]
	if !exists {
		cm.mu.Unlock()
		return
	}

	// Create new config instance (preserve original type via reflection)
	newConfig := reflect.New(reflect.TypeOf(oldConfig).Elem()).Interface().(Config)

	v := cm.newViper(configName)
	if err := v.ReadInConfig(); err != nil {
		cm.mu.Unlock()
		fmt.Printf("reloadConfig: failed to read config %s: %v\n", configName, err)
		return
	}

	if err := v.Unmarshal(newConfig); err != nil {
		cm.mu.Unlock()
		fmt.Printf("reloadConfig: failed to unmarshal config %s: %v\n", configName, err)
		return
	}

	if err := newConfig.Validate(); err != nil {
		cm.mu.Unlock()
		fmt.Printf("reloadConfig: validation failed for config %s: %v\n", configName, err)
		return
	}

	cm.configs[configName] = newConfig
	cm.mu.Unlock()

	// Listeners run outside the lock; a listener may call back into the
	// manager.
	cm.NotifyConfigChanged(configName, newConfig, oldConfig)
}

// Close closes the configuration manager
func (cm *configManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, watcher := range cm.watchers {
		if err := watcher.Close(); err != nil {
			return err
		}
	}
	return nil
}

// ConfigManagerProvider provides configuration manager
type ConfigManagerProvider struct {
	configManager ConfigManager
}

// NewConfigManagerProvider creates a new configuration manager provider
func NewConfigManagerProvider(cm ConfigManager) *ConfigManagerProvider {
	return &ConfigManagerProvider{configManager: cm}
}

// GetConfigManager gets the configuration manager
func (p *ConfigManagerProvider) GetConfigManager() ConfigManager {
	return p.configManager
}

// SetConfigManager sets the configuration manager
func (p *ConfigManagerProvider) SetConfigManager(cm ConfigManager) {
	p.configManager = cm
}
