// Package log provides the structured, appender-based logger used throughout
// the Keel framework.
package log

import (
	"github.com/lcx/keel/config"
)

// Logger is the minimal logging contract consumed by framework packages.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	IgnoreCheckLevel() bool
	GetAppender() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent)
}

var _defaultLogger *CoreLogger

func init() {
	_defaultLogger = NewLogger(nil)
}

// AddAppender adds an appender to the package-level default logger.
func AddAppender(appender LogAppender) {
	_defaultLogger.AddAppender(appender)
}

// Refresh refreshes all appenders of the default logger.
func Refresh() {
	_defaultLogger.Refresh()
}

// SetDefaultLogger replaces the default logger.
func SetDefaultLogger(logger *CoreLogger) {
	_defaultLogger = logger
}

// Initialize loads the "logger" configuration from the singleton config
// manager, rebuilds the default logger from it, and registers the logger for
// hot reload.
func Initialize() error {
	return InitializeWithConfigManager(config.GetInstance())
}

// InitializeWithConfigManager is Initialize with an explicit manager, mainly
// for tests.
func InitializeWithConfigManager(configManager config.ConfigManager) error {
	if configManager == nil {
		return nil
	}

	logCfg := &LogCfg{}
	if err := configManager.LoadConfig("logger", logCfg); err != nil {
		return err
	}

	logger := NewLogger(logCfg)
	configManager.AddChangeListener(logger)
	SetDefaultLogger(logger)
	return nil
}

// Debug creates a debug-level event on the default logger.
func Debug() *LogEvent {
	return _defaultLogger.Debug()
}

// Info creates an info-level event on the default logger.
func Info() *LogEvent {
	return _defaultLogger.Info()
}

// Warn creates a warn-level event on the default logger.
func Warn() *LogEvent {
	return _defaultLogger.Warn()
}

// Error creates an error-level event on the default logger.
func Error() *LogEvent {
	return _defaultLogger.Error()
}

// Fatal creates a fatal-level event on the default logger; finishing it
// panics.
func Fatal() *LogEvent {
	return _defaultLogger.Fatal()
}
