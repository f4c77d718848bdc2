package obs

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLogRequestWritesJSON(t *testing.T) {
	logger := Logger()
	orig := logger.Out
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(orig)

	LogRequest(map[string]any{"method": "GET", "status": 200})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v (%q)", err, buf.String())
	}
	for _, key := range []string{"ts", "level", "msg", "method", "status"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in %v", key, entry)
		}
	}
	if entry["msg"] != "request_complete" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
}
