package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "prod")

	l.Info("booked", slog.String("id", "abc"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON, got %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "booked" {
		t.Errorf("msg = %v, want booked", entry["msg"])
	}
	if entry["id"] != "abc" {
		t.Errorf("id = %v, want abc", entry["id"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected time field")
	}
}

func TestNew_LevelByEnv(t *testing.T) {
	var prod bytes.Buffer
	New(&prod, "prod").Debug("hidden")
	if prod.Len() != 0 {
		t.Errorf("debug record written in prod: %s", prod.String())
	}

	var dev bytes.Buffer
	New(&dev, "dev").Debug("shown")
	if dev.Len() == 0 {
		t.Error("debug record dropped in dev")
	}
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(&buf, "prod")
	slog.Warn("via default")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("default logger did not write JSON: %v", err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
}
