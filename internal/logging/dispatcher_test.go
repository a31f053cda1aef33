package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewDispatcherLogger(t *testing.T) {
	dl := NewDispatcherLogger(zerolog.New(&bytes.Buffer{}))
	assert.NotNil(t, dl)
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(dl *DispatcherLogger)
	}{
		{"debug", func(dl *DispatcherLogger) { dl.Debug("test message", "key1", "value1", "key2", 42) }},
		{"info", func(dl *DispatcherLogger) { dl.Info("test message", "key1", "value1", "key2", 42) }},
		{"error", func(dl *DispatcherLogger) { dl.Error("test message", "key1", "value1", "key2", 42) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

			tt.log(dl)

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "test message", entry["message"])
			assert.Equal(t, "value1", entry["key1"])
			assert.Equal(t, float64(42), entry["key2"])
		})
	}
}

func TestDispatcherLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestToFields(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want map[string]any
	}{
		{"empty", nil, map[string]any{}},
		{"pairs", []any{"a", 1, "b", "x"}, map[string]any{"a": 1, "b": "x"}},
		{"odd count drops dangling key", []any{"a", 1, "b"}, map[string]any{"a": 1}},
		{"non-string key skipped", []any{3, "x", "ok", true}, map[string]any{"ok": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toFields(tt.in))
		})
	}
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "warn")

	logger.Info().Msg("quiet")
	logger.Warn().Str("bone", "Hips").Msg("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "bone=Hips")
}

func TestParseZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ParseZerologLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, ParseZerologLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseZerologLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseZerologLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseZerologLevel("bogus"))
}
