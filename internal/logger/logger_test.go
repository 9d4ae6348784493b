package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: "debug"})

	ctx := l.WithContext(context.Background())
	ctx = SetRunID(ctx, "run-1")
	ctx = SetSource(ctx, "staging")

	With(Fields{FieldCount: 3}).Info(ctx, "Stored %d records", 3)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	for key, want := range map[string]interface{}{
		"run_id":  "run-1",
		"source":  "staging",
		"service": "layoffwatch",
		"message": "Stored 3 records",
		"count":   float64(3),
	} {
		if line[key] != want {
			t.Errorf("%s = %v, want %v", key, line[key], want)
		}
	}
	if GetRunID(ctx) != "run-1" {
		t.Errorf("GetRunID = %q", GetRunID(ctx))
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Error("expected default logger for bare context")
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Format: "text", ServiceName: "svc"})
	l.Info("hello")
	if !strings.Contains(buf.String(), "service=svc") {
		t.Errorf("text output missing service field: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: "warn"})
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %s", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Error("warn line was not written")
	}
}
