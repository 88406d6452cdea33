package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestMultiHandlerFansOut(t *testing.T) {
	var text, jsonBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&text, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&jsonBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("service", "test")

	logger.Info("new entity created", "name", "LeBron James")
	logger.Warn("ambiguous devig match")

	if !strings.Contains(text.String(), "new entity created") || !strings.Contains(text.String(), "ambiguous devig match") {
		t.Errorf("text handler output = %q", text.String())
	}
	if strings.Contains(jsonBuf.String(), "new entity created") {
		t.Errorf("json handler should drop info records: %q", jsonBuf.String())
	}
	if !strings.Contains(jsonBuf.String(), `"service":"test"`) {
		t.Errorf("json handler lost attrs: %q", jsonBuf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
