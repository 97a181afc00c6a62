// Package logger builds the service's slog loggers: a colored text handler
// for interactive use and a JSON handler for deployments.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a logger for the given level and format ("text" or "json").
func New(level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: lvl,
		}))
	}
	return NewDefaultLogger(lvl)
}

// NewDefaultLogger creates a new logger with color support for errors and warnings
// This is a convenience function for common use cases
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewLogger creates a new logger with color support using a custom writer
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
