package log

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogAppender receives encoded log lines from a logger. Implementations must
// be safe for concurrent Write calls.
type LogAppender interface {
	Write(line []byte)
	Refresh()
	Close() error
}

// ConsoleAppender writes log lines to stdout.
type ConsoleAppender struct {
	mu sync.Mutex
}

// NewConsoleAppender creates a stdout appender.
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{}
}

func (a *ConsoleAppender) Write(line []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = os.Stdout.Write(line)
}

func (a *ConsoleAppender) Refresh() {}

func (a *ConsoleAppender) Close() error { return nil }

// FileAppender writes log lines to a file with size-based rotation and an
// optional asynchronous write path for latency-sensitive callers.
type FileAppender struct {
	mu       sync.Mutex
	path     string
	splitMB  int
	file     *os.File
	written  int64
	async    bool
	ch       chan []byte
	done     chan struct{}
	interval time.Duration
}

// NewFileAppender creates a file appender from the logger configuration.
// The log directory is created on demand.
func NewFileAppender(cfg *LogCfg) *FileAppender {
	a := &FileAppender{
		path:     cfg.LogPath,
		splitMB:  cfg.FileSplitMB,
		async:    cfg.IsAsync,
		interval: time.Duration(cfg.AsyncWriteMillSec) * time.Millisecond,
	}
	if a.interval <= 0 {
		a.interval = 200 * time.Millisecond
	}
	if a.async {
		size := cfg.AsyncCacheSize
		if size <= 0 {
			size = 1024
		}
		a.ch = make(chan []byte, size)
		a.done = make(chan struct{})
		go a.drain()
	}
	return a
}

func (a *FileAppender) Write(line []byte) {
	if a.async {
		// Drop on overflow rather than block the logging caller.
		cp := make([]byte, len(line))
		copy(cp, line)
		select {
		case a.ch <- cp:
		default:
		}
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.write(line)
}

func (a *FileAppender) drain() {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case line := <-a.ch:
			a.mu.Lock()
			a.write(line)
			a.mu.Unlock()
		case <-ticker.C:
			a.mu.Lock()
			if a.file != nil {
				_ = a.file.Sync()
			}
			a.mu.Unlock()
		case <-a.done:
			for {
				select {
				case line := <-a.ch:
					a.mu.Lock()
					a.write(line)
					a.mu.Unlock()
				default:
					return
				}
			}
		}
	}
}

func (a *FileAppender) write(line []byte) {
	if a.file == nil {
		if err := a.openFile(); err != nil {
			return
		}
	}
	if a.splitMB > 0 && a.written+int64(len(line)) > int64(a.splitMB)<<20 {
		a.rotate()
	}
	n, err := a.file.Write(line)
	if err == nil {
		a.written += int64(n)
	}
}

func (a *FileAppender) openFile() error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err == nil {
		a.written = info.Size()
	}
	a.file = f
	return nil
}

func (a *FileAppender) rotate() {
	_ = a.file.Close()
	a.file = nil
	rotated := a.path + "." + time.Now().Format("20060102T150405")
	_ = os.Rename(a.path, rotated)
	a.written = 0
	_ = a.openFile()
}

// Refresh reopens the log file, applying any path or rotation changes.
func (a *FileAppender) Refresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
}

// Close flushes pending async lines and closes the file.
func (a *FileAppender) Close() error {
	if a.async {
		close(a.done)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
