// README: Logger tests (level filtering, key renames).
package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter_RenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	Action(NewWithWriter(&buf, "info"), "accept").Info("ride accepted", "ride_id", "r1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["message"] != "ride accepted" {
		t.Errorf("message = %v", rec["message"])
	}
	if rec["action"] != "accept" {
		t.Errorf("action = %v", rec["action"])
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Errorf("expected timestamp key, got %v", rec)
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "WARN")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at WARN, got %s", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("warn should be written")
	}
}
