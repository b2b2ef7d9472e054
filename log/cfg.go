package log

// LogCfg holds logger configuration. It supports hot reload through the
// configuration manager: level, caller capture, and appender settings can be
// changed without restarting the host process.
type LogCfg struct {
	// LogPath is the target file for file-based logging. Parent directories
	// are created on demand.
	LogPath string `mapstructure:"path"`

	// LogLevel is the minimum level that will be emitted.
	LogLevel Level `mapstructure:"level"`

	// FileSplitMB rotates the log file once it exceeds this many megabytes.
	// Zero disables size-based rotation.
	FileSplitMB int `mapstructure:"splitmb"`

	// IsAsync buffers file writes on a background goroutine.
	IsAsync bool `mapstructure:"isasync"`

	// AsyncCacheSize bounds the async buffer. Lines are dropped, not blocked
	// on, once the buffer is full.
	AsyncCacheSize int `mapstructure:"asynccachesize"`

	// AsyncWriteMillSec is the async flush interval in milliseconds.
	AsyncWriteMillSec int `mapstructure:"asyncwritemillsec"`

	// CallerSkip adjusts stack depth for caller capture, for wrapper layers.
	CallerSkip int `mapstructure:"callerSkip"`

	// EnabledCallerInfo captures file/function/line for each event.
	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`

	// FileAppender enables the rotating file appender.
	FileAppender bool `mapstructure:"fileAppender"`

	// ConsoleAppender enables the stdout appender.
	ConsoleAppender bool `mapstructure:"consoleAppender"`
}

// GetName implements the config.Config interface.
func (c *LogCfg) GetName() string { return "logger" }

// Validate implements the config.Config interface.
func (c *LogCfg) Validate() error { return nil }

func getDefaultCfg() *LogCfg {
	return &LogCfg{
		LogLevel:        InfoLevel,
		ConsoleAppender: true,
	}
}
