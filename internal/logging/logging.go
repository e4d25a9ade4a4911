// Package logging builds the slog logger shared by the client components.
//
// The interactive wizard owns the terminal, so logs go to a file when one is
// configured and are discarded otherwise.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Open creates the logger for a log file path. An empty path yields a
// logger that discards everything. The returned close func is never nil.
func Open(path, level string) (*slog.Logger, func() error, error) {
	if path == "" {
		return New(io.Discard, level), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return New(f, level), f.Close, nil
}

// Discard returns a logger that drops every record. Useful for tests.
func Discard() *slog.Logger {
	return New(io.Discard, "error")
}

// ParseLevel maps a level name to a slog.Level, defaulting to warn.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
