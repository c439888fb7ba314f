package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"safetymodule/core/types"
)

func TestSetupWriterEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "safetyd", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("hello", "component", "keeper")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{
		"service":   "safetyd",
		"env":       "test",
		"severity":  "INFO",
		"message":   "hello",
		"component": "keeper",
	} {
		if line[key] != want {
			t.Fatalf("%s = %v want %s", key, line[key], want)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp in %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v want %v", raw, got, want)
		}
	}
}

func TestEventArgsSorted(t *testing.T) {
	args := EventArgs(types.Event{Type: "auction.started", Attributes: map[string]string{"id": "1", "endTime": "9"}})
	if len(args) != 3 {
		t.Fatalf("args = %v", args)
	}
	if attr := args[1].(slog.Attr); attr.Key != "endTime" {
		t.Fatalf("first attribute %q, want endTime", attr.Key)
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("authorization", "Bearer x").Value.String(); got != RedactedValue {
		t.Fatalf("authorization not masked: %s", got)
	}
	if got := MaskField("endpoint", "otel:4318").Value.String(); got != "otel:4318" {
		t.Fatalf("endpoint masked: %s", got)
	}
	if got := MaskValue("  "); got != "  " {
		t.Fatalf("blank value changed: %q", got)
	}
}

func TestOutputMirrorsIntoRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safetyd.log")
	w, closeFn := Output(path, 1, 1)
	logger := SetupWriter(w, "safetyd", "test", slog.LevelInfo)
	logger.Info("rotated")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"message":"rotated"`) {
		t.Fatalf("unexpected log file %q", data)
	}

	if w, closeFn := Output("", 0, 0); w != os.Stdout || closeFn() != nil {
		t.Fatalf("expected bare stdout sink")
	}
}
