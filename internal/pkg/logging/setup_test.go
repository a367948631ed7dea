package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud): expected error")
	}
}

func TestMultiHandler_FansOutByLevel(t *testing.T) {
	var info, debug bytes.Buffer
	h := &MultiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}
	logger := slog.New(h).With("source", "betfair")

	logger.Debug("cycle", "runners", 8)
	logger.Info("initialized")

	if strings.Contains(info.String(), "cycle") {
		t.Errorf("info handler received debug record: %s", info.String())
	}
	if !strings.Contains(info.String(), "initialized") || !strings.Contains(info.String(), "source=betfair") {
		t.Errorf("info handler output = %q", info.String())
	}
	if !strings.Contains(debug.String(), `"msg":"cycle"`) || !strings.Contains(debug.String(), `"source":"betfair"`) {
		t.Errorf("debug handler output = %q", debug.String())
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = false, want true")
	}
}
