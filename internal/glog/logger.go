// Package glog wraps log/slog for the g toolchain's ambient logging.
//
// Grounded on zurustar-son-et/pkg/logger/logger.go's level-string parsing
// and slog.NewTextHandler setup, but returns an owned *Logger instead of
// mutating a package-level global: the CLI builds one and hands it to the
// VM or interpreter, each of which holds its own handle (SPEC_FULL.md §2.1).
package glog

import (
	"fmt"
	"io"
	"log/slog"
)

// Logger is a thin alias kept so callers depend on this package, not
// log/slog directly, if the backing implementation ever changes.
type Logger = slog.Logger

// New builds a text-handler logger writing to w at the given level.
// Accepted levels: "debug", "info", "warn", "error".
func New(w io.Writer, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler), nil
}

// ParseLevel maps a CLI-facing level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// Discard returns a logger that drops everything, for callers such as the
// tests that must hand the VM/interpreter a non-nil logger but want no
// output. The CLI does not use it: without -log-level it logs at "error".
func Discard() *Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
