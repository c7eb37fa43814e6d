package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestNew_JSONWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})
	log.Info("queue started", "queue", "chapter-data")

	assert.Contains(t, buf.String(), `"msg":"queue started"`)
	assert.Contains(t, buf.String(), `"queue":"chapter-data"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_FormatFromEnvironment(t *testing.T) {
	tests := []struct {
		environment string
		wantJSON    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			log.Info("test")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"test"`)
			} else {
				assert.Contains(t, buf.String(), "INF test")
			}
		})
	}
}

func TestNew_ColorDetection(t *testing.T) {
	var plain bytes.Buffer
	New(Config{Writer: &plain, Format: "pretty"}).Info("hello")
	assert.NotContains(t, plain.String(), "\033[")

	var forced bytes.Buffer
	New(Config{Writer: &forced, Format: "pretty", Color: boolPtr(true)}).Info("hello")
	assert.Contains(t, forced.String(), colorBold+"hello"+colorReset)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	handler := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo}, false)

	assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))

	defaults := NewPrettyHandler(&bytes.Buffer{}, nil, false)
	assert.False(t, defaults.Enabled(context.Background(), slog.LevelDebug))
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))

	log.Warn("page download failed", "chapter_id", "abc", "attempt", 3, "reason", "connection reset")

	out := buf.String()
	assert.Contains(t, out, "WRN page download failed")
	assert.Contains(t, out, "chapter_id=abc")
	assert.Contains(t, out, "attempt=3")
	assert.Contains(t, out, `reason="connection reset"`)
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPrettyHandler(&buf, nil, false)

	assert.Equal(t, handler, handler.WithGroup(""))

	log := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "importer")})).
		WithGroup("job").
		With("id", "j1")
	log.Info("done", "attempts", 1)

	out := buf.String()
	assert.Contains(t, out, "component=importer")
	assert.Contains(t, out, "job.id=j1")
	assert.Contains(t, out, "job.attempts=1")
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{AddSource: true}, false))
	log.Info("test message")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFormatLevel(t *testing.T) {
	tests := []struct {
		level     slog.Level
		wantStr   string
		wantColor string
	}{
		{slog.LevelDebug, "DBG", colorMagenta},
		{slog.LevelInfo, "INF", colorGreen},
		{slog.LevelWarn, "WRN", colorYellow},
		{slog.LevelError, "ERR", colorRed},
	}

	for _, tt := range tests {
		t.Run(tt.wantStr, func(t *testing.T) {
			str, color := formatLevel(tt.level)
			assert.Equal(t, tt.wantStr, str)
			assert.Equal(t, tt.wantColor, color)
		})
	}
}

func TestFormatValue(t *testing.T) {
	now := time.Now()
	assert.Equal(t, now.Format(time.RFC3339), formatValue(slog.TimeValue(now)))
	assert.Equal(t, "1m30s", formatValue(slog.DurationValue(90*time.Second)))
	assert.Equal(t, "42", formatValue(slog.IntValue(42)))
	assert.Equal(t, "plain", formatValue(slog.StringValue("plain")))
	assert.Equal(t, `"two words"`, formatValue(slog.StringValue("two words")))
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithError(errors.New("boom")).
		WithField("serie_id", "s1").
		WithFields(map[string]any{"source": "mangadex"}).
		Info("import failed")
	log.Component("scheduler").Info("tick")

	out := buf.String()
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"serie_id":"s1"`)
	assert.Contains(t, out, `"source":"mangadex"`)
	assert.Contains(t, out, `"component":"scheduler"`)
}
