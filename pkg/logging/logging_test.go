package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/jpdict/pkg/config"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, config.LogConfig{Level: "info", Format: "json"})
	log.Info("imported", slog.String("name", "JMdict"))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "imported", m["msg"])
	assert.Equal(t, "JMdict", m["name"])
	assert.NotContains(t, m, "source")
}

func TestTextFormatHasSource(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, config.LogConfig{Level: "debug", Format: "text"})
	log.Debug("detail")
	assert.Contains(t, buf.String(), "source=")
	assert.Contains(t, buf.String(), "msg=detail")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, config.LogConfig{Level: "warn", Format: "text"})
	log.Info("hidden")
	log.Warn("shown")
	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewSetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := New(config.LogConfig{Level: "info", Format: "json"})
	assert.Same(t, logger, slog.Default())
}
