// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/japaniel/jpdict/pkg/config"
)

// New creates a logger writing to stderr and installs it as the default.
//
// Format "json" produces JSON lines; anything else produces text with
// source locations. Level is one of debug, info, warn or error and
// defaults to info.
func New(cfg config.LogConfig) *slog.Logger {
	logger := NewWriter(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

// NewWriter is New without the side effect, writing to w.
func NewWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: !strings.EqualFold(cfg.Format, "json"),
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
