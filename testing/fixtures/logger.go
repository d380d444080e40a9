// Package fixtures provides reusable test doubles: a recording logger, a
// manual clock and an in-memory metric reader.
package fixtures

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/gaborage/go-fetchkit/logger"
)

// LoggedEvent is one captured log entry.
type LoggedEvent struct {
	Level   string
	Message string
	Fields  map[string]any
}

// RecordingLogger implements logger.Logger and keeps every emitted event.
// It is safe for concurrent use.
type RecordingLogger struct {
	mu     sync.Mutex
	events []LoggedEvent
	fields map[string]any
	parent *RecordingLogger
}

var _ logger.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger creates an empty recorder.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) root() *RecordingLogger {
	if l.parent != nil {
		return l.parent.root()
	}
	return l
}

func (l *RecordingLogger) event(level string) logger.LogEvent {
	fields := make(map[string]any, len(l.fields))
	maps.Copy(fields, l.fields)
	return &recordingEvent{logger: l.root(), level: level, fields: fields}
}

func (l *RecordingLogger) Info() logger.LogEvent  { return l.event("info") }
func (l *RecordingLogger) Error() logger.LogEvent { return l.event("error") }
func (l *RecordingLogger) Debug() logger.LogEvent { return l.event("debug") }
func (l *RecordingLogger) Warn() logger.LogEvent  { return l.event("warn") }
func (l *RecordingLogger) Fatal() logger.LogEvent { return l.event("fatal") }

func (l *RecordingLogger) WithContext(_ any) logger.Logger { return l }

// WithFields returns a child whose events land in the same recorder.
func (l *RecordingLogger) WithFields(fields map[string]any) logger.Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	maps.Copy(merged, l.fields)
	maps.Copy(merged, fields)
	return &RecordingLogger{fields: merged, parent: l.root()}
}

// Events returns a copy of everything recorded so far.
func (l *RecordingLogger) Events() []LoggedEvent {
	r := l.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LoggedEvent, len(r.events))
	copy(out, r.events)
	return out
}

// EventsAt returns recorded events of a single level.
func (l *RecordingLogger) EventsAt(level string) []LoggedEvent {
	var out []LoggedEvent
	for _, e := range l.Events() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// FindByMessage returns the first event with the given message.
func (l *RecordingLogger) FindByMessage(msg string) (LoggedEvent, bool) {
	for _, e := range l.Events() {
		if e.Message == msg {
			return e, true
		}
	}
	return LoggedEvent{}, false
}

func (l *RecordingLogger) record(e LoggedEvent) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

type recordingEvent struct {
	logger *RecordingLogger
	level  string
	fields map[string]any
}

func (e *recordingEvent) Msg(msg string) {
	e.logger.record(LoggedEvent{Level: e.level, Message: msg, Fields: e.fields})
}

func (e *recordingEvent) Msgf(format string, args ...any) {
	e.Msg(fmt.Sprintf(format, args...))
}

func (e *recordingEvent) set(key string, v any) logger.LogEvent {
	e.fields[key] = v
	return e
}

func (e *recordingEvent) Err(err error) logger.LogEvent           { return e.set("error", err) }
func (e *recordingEvent) Str(key, value string) logger.LogEvent   { return e.set(key, value) }
func (e *recordingEvent) Int(key string, v int) logger.LogEvent   { return e.set(key, v) }
func (e *recordingEvent) Int64(key string, v int64) logger.LogEvent {
	return e.set(key, v)
}
func (e *recordingEvent) Uint64(key string, v uint64) logger.LogEvent {
	return e.set(key, v)
}
func (e *recordingEvent) Dur(key string, d time.Duration) logger.LogEvent {
	return e.set(key, d)
}
func (e *recordingEvent) Interface(key string, i any) logger.LogEvent { return e.set(key, i) }
func (e *recordingEvent) Bytes(key string, val []byte) logger.LogEvent {
	return e.set(key, val)
}
