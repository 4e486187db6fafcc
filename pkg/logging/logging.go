// Package logging builds the process-wide slog logger.
//
// Two formats are supported:
//
//	json: slog.JSONHandler, for services and log shippers
//	text: colored output through tint, for terminals
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps a config string onto a slog level. Unknown values fall back
// to info.
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

// New returns a logger writing to w in the given format ("json" or "text").
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	if strings.EqualFold(format, "text") {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Setup builds a logger with New and installs it as the slog default.
func Setup(w io.Writer, format, level string) *slog.Logger {
	logger := New(w, format, ParseLevel(level))
	slog.SetDefault(logger)
	return logger
}
