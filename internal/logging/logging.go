// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel maps a config level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Setup installs a logger writing text to stderr and, when logFile is set, JSON
// to logFile. The returned function closes the log file.
func Setup(level, logFile string) (*slog.Logger, func() error) {
	lvl := ParseLevel(level)
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})

	if logFile == "" {
		logger := slog.New(stderrHandler)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger := slog.New(stderrHandler)
		slog.SetDefault(logger)
		logger.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return logger, func() error { return nil }
	}

	logger := New(os.Stderr, file, lvl)
	slog.SetDefault(logger)
	return logger, file.Close
}

// New creates a fanout logger over explicit writers.
func New(text, json io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(text, &slog.HandlerOptions{Level: level}),
		slog.NewJSONHandler(json, &slog.HandlerOptions{Level: level}),
	))
}
