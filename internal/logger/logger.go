package logger

import (
	"io"
	"log/slog"
	"os"
)

// New creates the process-wide slog.Logger writing to os.Stdout.
// Debug mode lowers the level to Debug and switches to the text handler,
// which is easier to read during development; production output is JSON.
func New(debug bool) *slog.Logger {
	return NewWithWriter(os.Stdout, debug)
}

// NewWithWriter creates a new slog.Logger instance with a specific writer.
func NewWithWriter(w io.Writer, debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
