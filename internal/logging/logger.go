package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the process logger with JSON output on stdout and installs it
// as the slog default so panics recovered in middleware share the same sink.
func New(level slog.Level) *slog.Logger {
	logger := NewWithWriter(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

// NewWithWriter creates a JSON logger writing to w. CLI subcommands log to
// stderr so stdout stays reserved for their output.
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
