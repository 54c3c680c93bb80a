package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/gaborage/go-bricks-rest/logger"
)

// Entry is one message captured by RecordingLogger.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// RecordingLogger is a logger.Logger that keeps every sent event in memory.
type RecordingLogger struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  map[string]any
}

var _ logger.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger creates an empty recorder.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
		fields:  map[string]any{},
	}
}

func (l *RecordingLogger) Info() logger.LogEvent  { return l.event("info") }
func (l *RecordingLogger) Error() logger.LogEvent { return l.event("error") }
func (l *RecordingLogger) Debug() logger.LogEvent { return l.event("debug") }
func (l *RecordingLogger) Warn() logger.LogEvent  { return l.event("warn") }

// WithFields returns a child recorder sharing the same entries.
func (l *RecordingLogger) WithFields(fields map[string]any) logger.Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingLogger{mu: l.mu, entries: l.entries, fields: merged}
}

// Entries returns a copy of the captured entries.
func (l *RecordingLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), (*l.entries)...)
}

// Messages returns the entries with the given message.
func (l *RecordingLogger) Messages(msg string) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

func (l *RecordingLogger) event(level string) logger.LogEvent {
	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &recordingEvent{owner: l, level: level, fields: fields}
}

type recordingEvent struct {
	owner  *RecordingLogger
	level  string
	fields map[string]any
}

func (e *recordingEvent) Msg(msg string) {
	e.owner.mu.Lock()
	defer e.owner.mu.Unlock()
	*e.owner.entries = append(*e.owner.entries, Entry{Level: e.level, Message: msg, Fields: e.fields})
}

func (e *recordingEvent) Msgf(format string, args ...any) {
	e.Msg(fmt.Sprintf(format, args...))
}

func (e *recordingEvent) set(key string, value any) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *recordingEvent) Err(err error) logger.LogEvent            { return e.set("error", err) }
func (e *recordingEvent) Str(key, value string) logger.LogEvent    { return e.set(key, value) }
func (e *recordingEvent) Int(key string, value int) logger.LogEvent { return e.set(key, value) }
func (e *recordingEvent) Int64(key string, value int64) logger.LogEvent {
	return e.set(key, value)
}
func (e *recordingEvent) Bool(key string, value bool) logger.LogEvent { return e.set(key, value) }
func (e *recordingEvent) Dur(key string, d time.Duration) logger.LogEvent {
	return e.set(key, d)
}
func (e *recordingEvent) Interface(key string, i any) logger.LogEvent { return e.set(key, i) }
func (e *recordingEvent) Bytes(key string, val []byte) logger.LogEvent {
	return e.set(key, string(val))
}
