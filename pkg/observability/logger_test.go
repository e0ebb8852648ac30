package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/researchportal/pubportal/pkg/contextkeys"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("Debug message should not be logged at Info level")
	}

	logger.Warn("warn message")
	entry := decodeEntry(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("Expected level WARN, got %v", entry["level"])
	}
	if entry["msg"] != "warn message" {
		t.Errorf("Expected message 'warn message', got %v", entry["msg"])
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("college", "EASWARI").
		WithFields(map[string]interface{}{"role": "faculty"}).
		WithError(errors.New("boom")).
		Infof("created %d users", 3)

	entry := decodeEntry(t, &buf)
	if entry["college"] != "EASWARI" || entry["role"] != "faculty" {
		t.Errorf("Expected fields to be present, got %v", entry)
	}
	if entry["error"] != "boom" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
	if entry["msg"] != "created 3 users" {
		t.Errorf("Unexpected message %v", entry["msg"])
	}

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &buf))
	ctx = contextkeys.WithRequestID(ctx, "req-1")
	ctx = contextkeys.WithUserID(ctx, "7")

	FromContext(ctx).Info("hello")

	entry := decodeEntry(t, &buf)
	if entry["request_id"] != "req-1" {
		t.Errorf("Expected request_id req-1, got %v", entry["request_id"])
	}
	if entry["user_id"] != "7" {
		t.Errorf("Expected user_id 7, got %v", entry["user_id"])
	}
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "gauge refresh")
		panic("boom")
	}()

	entry := decodeEntry(t, &buf)
	if entry["panic"] != "boom" {
		t.Errorf("Expected panic value 'boom', got %v", entry["panic"])
	}
	if entry["context"] != "gauge refresh" {
		t.Errorf("Expected context 'gauge refresh', got %v", entry["context"])
	}
}
