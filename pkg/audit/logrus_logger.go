package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/researchportal/pubportal/pkg/contextkeys"
)

// LogrusLogger writes events as JSON lines through a dedicated logrus logger
type LogrusLogger struct {
	log    *logrus.Logger
	closer io.Closer
	once   sync.Once
}

// NewLogrusLogger opens output, which is "stdout", "stderr" or a file path
// opened for append
func NewLogrusLogger(output string) (*LogrusLogger, error) {
	switch output {
	case "", "stdout":
		return NewLogrusLoggerWithWriter(os.Stdout), nil
	case "stderr":
		return NewLogrusLoggerWithWriter(os.Stderr), nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", output, err)
	}
	l := NewLogrusLoggerWithWriter(f)
	l.closer = f
	return l, nil
}

// NewLogrusLoggerWithWriter writes events to w
func NewLogrusLoggerWithWriter(w io.Writer) *LogrusLogger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return &LogrusLogger{log: log}
}

// Log writes event. Denied and failed events are logged at warn level.
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("audit event is nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}

	fields := logrus.Fields{
		"audit":      true,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.ActorRole != "" {
		fields["actor_role"] = string(event.ActorRole)
	}
	if event.ActorEmail != "" {
		fields["actor_email"] = event.ActorEmail
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
	}
	if event.ResourceID != "" {
		fields["resource_id"] = event.ResourceID
	}
	if event.Rule != "" {
		fields["rule"] = event.Rule
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	if len(event.Metadata) > 0 {
		fields["metadata"] = event.Metadata
	}
	if event.Changes != nil {
		fields["changes"] = event.Changes
	}

	entry := l.log.WithFields(fields).WithTime(event.Timestamp)
	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}

	switch event.Status {
	case EventStatusDenied, EventStatusFailure:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
	return nil
}

// Close closes the output file, if one was opened
func (l *LogrusLogger) Close() error {
	var err error
	l.once.Do(func() {
		if l.closer != nil {
			err = l.closer.Close()
		}
	})
	return err
}
