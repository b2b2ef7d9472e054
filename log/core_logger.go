package log

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/lcx/keel/config"
)

// CoreLogger is the framework logger. It is safe for concurrent use, pools
// its events to keep allocation pressure low on the logging fast path, and
// supports hot reload of its configuration through the config manager.
type CoreLogger struct {
	appenders         []LogAppender
	minLevel          Level
	callerSkip        int
	eventPool         *sync.Pool
	callerCache       sync.Map
	enabledCallerInfo bool
	configMutex       sync.RWMutex
	currentConfig     *LogCfg
}

type callerInfo struct {
	file     string
	function string
	line     int
	repr     string
}

var _UnknownCallerInfo = &callerInfo{file: "???", function: "???", repr: "???:0"}

func newCallerInfo(file, function string, line int) *callerInfo {
	return &callerInfo{
		file:     file,
		function: function,
		line:     line,
		repr:     file + ":" + strconv.Itoa(line) + " " + function,
	}
}

func (c *callerInfo) String() string { return c.repr }

// NewLogger creates a CoreLogger from cfg, falling back to console-only
// defaults when cfg is nil.
func NewLogger(cfg *LogCfg) *CoreLogger {
	if cfg == nil {
		cfg = getDefaultCfg()
	}

	logger := &CoreLogger{
		minLevel:          cfg.LogLevel,
		callerSkip:        cfg.CallerSkip,
		enabledCallerInfo: cfg.EnabledCallerInfo,
		currentConfig:     cfg,
	}
	logger.eventPool = &sync.Pool{
		New: func() any {
			return newEvent(logger)
		},
	}

	if cfg.FileAppender {
		logger.AddAppender(NewFileAppender(cfg))
	}
	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}
	return logger
}

// OnConfigChanged implements config.ConfigChangeListener so the logger picks
// up "logger" config changes at runtime.
func (x *CoreLogger) OnConfigChanged(configName string, newConfig, _ config.Config) error {
	if configName != "logger" {
		return nil
	}
	newCfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}
	x.updateConfig(newCfg)
	return nil
}

func (x *CoreLogger) updateConfig(newCfg *LogCfg) {
	x.configMutex.Lock()
	defer x.configMutex.Unlock()

	atomic.StoreUint32((*uint32)(unsafe.Pointer(&x.minLevel)), uint32(newCfg.LogLevel))
	x.callerSkip = newCfg.CallerSkip
	x.enabledCallerInfo = newCfg.EnabledCallerInfo
	x.currentConfig = newCfg
	x.Refresh()
}

// GetCurrentConfig returns the active configuration.
func (x *CoreLogger) GetCurrentConfig() *LogCfg {
	x.configMutex.RLock()
	defer x.configMutex.RUnlock()
	return x.currentConfig
}

func (x *CoreLogger) checkLevel(level Level) bool {
	current := Level(atomic.LoadUint32((*uint32)(unsafe.Pointer(&x.minLevel))))
	return current <= level
}

// AddAppender registers an additional output destination.
func (x *CoreLogger) AddAppender(appender LogAppender) {
	x.appenders = append(x.appenders, appender)
}

// GetAppender returns the registered appenders.
func (x *CoreLogger) GetAppender() []LogAppender {
	return x.appenders
}

// Refresh asks every appender to re-apply its configuration, typically after
// rotation or a config change.
func (x *CoreLogger) Refresh() {
	for _, appender := range x.appenders {
		appender.Refresh()
	}
}

// IgnoreCheckLevel reports whether level filtering is bypassed. Always false
// for CoreLogger.
func (x *CoreLogger) IgnoreCheckLevel() bool { return false }

func (x *CoreLogger) newEvent() *LogEvent {
	e := x.eventPool.Get().(*LogEvent)
	e.Reset()
	return e
}

// OnEventEnd writes the finished event to every appender and recycles it.
// Fatal events panic after being written.
func (x *CoreLogger) OnEventEnd(e *LogEvent) {
	for _, appender := range x.appenders {
		appender.Write(e.Bytes())
	}
	if e.level == FatalLevel {
		panic("fatal log event")
	}
	x.eventPool.Put(e)
}

// Debug creates a debug-level event, or nil when filtered.
func (x *CoreLogger) Debug() *LogEvent { return x.log(DebugLevel) }

// Info creates an info-level event, or nil when filtered.
func (x *CoreLogger) Info() *LogEvent { return x.log(InfoLevel) }

// Warn creates a warn-level event, or nil when filtered.
func (x *CoreLogger) Warn() *LogEvent { return x.log(WarnLevel) }

// Error creates an error-level event, or nil when filtered.
func (x *CoreLogger) Error() *LogEvent { return x.log(ErrorLevel) }

// Fatal creates a fatal-level event; finishing it panics.
func (x *CoreLogger) Fatal() *LogEvent { return x.log(FatalLevel) }

func (x *CoreLogger) getCallerInfo() *callerInfo {
	pc, file, line, ok := runtime.Caller(3 + x.callerSkip)
	if !ok {
		return _UnknownCallerInfo
	}
	if cached, found := x.callerCache.Load(pc); found {
		return cached.(*callerInfo)
	}

	funcName := runtime.FuncForPC(pc).Name()
	function := funcName
	if dotIdx := strings.LastIndexByte(funcName, '.'); dotIdx != -1 {
		function = funcName[dotIdx+1:]
	}

	// Keep only the last two path segments of the file.
	if lastSlash := strings.LastIndexByte(file, '/'); lastSlash > 0 {
		if secondLastSlash := strings.LastIndexByte(file[:lastSlash], '/'); secondLastSlash >= 0 {
			file = file[secondLastSlash+1:]
		}
	}

	c := newCallerInfo(file, function, line)
	x.callerCache.Store(pc, c)
	return c
}

func (x *CoreLogger) log(level Level) *LogEvent {
	if !x.IgnoreCheckLevel() && !x.checkLevel(level) {
		return nil
	}

	e := x.newEvent()
	e.level = level

	t := time.Now()
	e.Time("time", &t)
	e.Str("level", level.String())

	if x.enabledCallerInfo {
		e.Str("caller", x.getCallerInfo().String())
	}
	return e
}
