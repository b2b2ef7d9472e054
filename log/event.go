package log

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// LogEvent accumulates structured key/value fields for a single log line.
// Events are pooled by the owning logger; callers must finish every event
// with Msg or Msgf so it can be returned to the pool. A nil event (level
// filtered out) is safe to use - every method no-ops on nil.
type LogEvent struct {
	logger Logger
	buf    bytes.Buffer
	level  Level
}

func newEvent(l Logger) *LogEvent {
	return &LogEvent{logger: l}
}

// Reset clears the event for reuse from the pool.
func (e *LogEvent) Reset() {
	e.buf.Reset()
	e.level = InfoLevel
}

// Level returns the severity the event was created with.
func (e *LogEvent) Level() Level {
	if e == nil {
		return TraceLevel
	}
	return e.level
}

// Bytes exposes the encoded line. Only appenders should call this.
func (e *LogEvent) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *LogEvent) key(k string) {
	if e.buf.Len() > 1 {
		e.buf.WriteByte(',')
	}
	e.buf.WriteByte('"')
	e.buf.WriteString(k)
	e.buf.WriteString(`":`)
}

func (e *LogEvent) open() {
	if e.buf.Len() == 0 {
		e.buf.WriteByte('{')
	}
}

// Str appends a string field.
func (e *LogEvent) Str(k, v string) *LogEvent {
	if e == nil {
		return nil
	}
	e.open()
	e.key(k)
	e.buf.WriteString(strconv.Quote(v))
	return e
}

// Strs appends a string slice field.
func (e *LogEvent) Strs(k string, vs []string) *LogEvent {
	if e == nil {
		return nil
	}
	e.open()
	e.key(k)
	e.buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.buf.WriteString(strconv.Quote(v))
	}
	e.buf.WriteByte(']')
	return e
}

// Int appends an integer field.
func (e *LogEvent) Int(k string, v int) *LogEvent {
	if e == nil {
		return nil
	}
	e.open()
	e.key(k)
	e.buf.WriteString(strconv.Itoa(v))
	return e
}

// Bool appends a boolean field.
func (e *LogEvent) Bool(k string, v bool) *LogEvent {
	if e == nil {
		return nil
	}
	e.open()
	e.key(k)
	e.buf.WriteString(strconv.FormatBool(v))
	return e
}

// Dur appends a duration field in milliseconds.
func (e *LogEvent) Dur(k string, d time.Duration) *LogEvent {
	if e == nil {
		return nil
	}
	e.open()
	e.key(k)
	e.buf.WriteString(strconv.FormatInt(d.Milliseconds(), 10))
	return e
}

// Time appends a timestamp field in RFC3339 format.
func (e *LogEvent) Time(k string, t *time.Time) *LogEvent {
	if e == nil {
		return nil
	}
	e.open()
	e.key(k)
	e.buf.WriteString(strconv.Quote(t.Format(time.RFC3339Nano)))
	return e
}

// Err appends an error field under the "error" key. Nil errors are skipped.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	return e.Str("error", err.Error())
}

// Any appends an arbitrary value using its default formatting.
func (e *LogEvent) Any(k string, v any) *LogEvent {
	if e == nil {
		return nil
	}
	return e.Str(k, fmt.Sprint(v))
}

// Msg finishes the event with a message and hands it to the logger's appenders.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	e.Str("msg", msg)
	e.buf.WriteByte('}')
	e.buf.WriteByte('\n')
	e.logger.OnEventEnd(e)
}

// Msgf finishes the event with a formatted message.
func (e *LogEvent) Msgf(format string, args ...any) {
	if e == nil {
		return
	}
	e.Msg(fmt.Sprintf(format, args...))
}
