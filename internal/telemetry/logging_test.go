package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConsoleHandler(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.With("app_id", "logo-studio").Warn("Monitoring client call failed", "operation", "track_error")
	logger.WithGroup("req").Error("boom", "status", 503)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], "WRN [crav-agent] Monitoring client call failed")
	assert.Contains(t, lines[0], "app_id=logo-studio")
	assert.Contains(t, lines[0], "operation=track_error")

	assert.Contains(t, lines[1], "ERR [crav-agent] boom")
	assert.Contains(t, lines[1], "req.status=503")
}

func TestFanoutHandler(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var console, structured bytes.Buffer
	h := fanoutHandler{
		NewConsoleHandler(&console, slog.LevelWarn),
		slog.NewJSONHandler(&structured, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	logger := slog.New(h).With("app_id", "data-lens")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	logger.Info("only structured")
	logger.Warn("both")

	assert.NotContains(t, console.String(), "only structured")
	assert.Contains(t, console.String(), "both")
	assert.Contains(t, structured.String(), `"msg":"only structured"`)
	assert.Contains(t, structured.String(), `"app_id":"data-lens"`)
	assert.Equal(t, 2, strings.Count(structured.String(), "\n"))
}

func TestGetLoggerDefault(t *testing.T) {
	assert.NotNil(t, GetLogger())
}
