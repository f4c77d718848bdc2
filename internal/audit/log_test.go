package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"inkwell.blog/internal/auth"
	"inkwell.blog/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Out
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithUser(ctx, auth.User{ID: "user-42", Name: "Alice"})

	if err := LogEvent(ctx, EventPostCreate, map[string]any{"post_id": "p1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != EventPostCreate {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["post_id"] != "p1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}

func TestRequestIDIgnoresBlank(t *testing.T) {
	if got := RequestID(WithRequestID(context.Background(), " ")); got != "" {
		t.Fatalf("unexpected request id: %q", got)
	}
}
