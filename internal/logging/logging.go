// Package logging builds the process logger: a log/slog front end over a
// charmbracelet/log handler.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w. Debug lowers the level from warn to debug.
func New(w io.Writer, debug bool) *slog.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	return NewWithLevel(w, level)
}

// NewWithLevel returns a logger writing to w at level.
func NewWithLevel(w io.Writer, level log.Level) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "gtodo",
		ReportTimestamp: level == log.DebugLevel,
	})
	return slog.New(handler)
}

// ParseLevel maps a level name to a log.Level. Unknown names map to warn.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.WarnLevel
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
