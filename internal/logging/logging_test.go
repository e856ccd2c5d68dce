package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-binspec/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warning ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(config.Log{Level: "info", Format: "json"}, &buf), "pipeline")

	log.Debug().Msg("hidden")
	log.Info().Int64("sobject_id", 42).Msg("fitted")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "fitted", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.InDelta(t, 42, entry["sobject_id"], 0)
	assert.Contains(t, entry, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.Log{Level: "debug", Format: "console"}, &buf)
	log.Debug().Str("ccd", "2").Msg("grid built")

	out := buf.String()
	assert.Contains(t, out, "grid built")
	assert.Contains(t, out, "ccd=")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}
