package audit

import (
	"context"
	"sync"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an event. Callers treat failures as non-fatal.
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the underlying output
	Close() error
}

type contextKey string

// loggerKey is the context key for the audit logger
const loggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                       { return nil }

// MemoryLogger keeps events in memory. Used by tests and the CLI.
type MemoryLogger struct {
	mu     sync.Mutex
	events []*Event
}

// NewMemoryLogger creates an empty MemoryLogger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(_ context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *MemoryLogger) Close() error { return nil }

// Events returns a copy of the recorded events
func (l *MemoryLogger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Event, len(l.events))
	copy(out, l.events)
	return out
}

// OfType returns the recorded events of type t
func (l *MemoryLogger) OfType(t EventType) []*Event {
	var out []*Event
	for _, e := range l.Events() {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}
