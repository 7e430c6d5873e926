package log

import (
	"io"
	"log/slog"

	slogctx "github.com/veqryn/slog-context"
)

// Options configures NewLogger.
type Options struct {
	// Verbose sets the level to Debug. Otherwise only warnings and errors
	// are logged.
	Verbose bool

	// JSON selects JSON lines instead of text output.
	JSON bool
}

// NewLogger creates a logger that adds the attributes stored in the
// context with slogctx.Append and sanitizes every attribute, including
// the context ones, before writing.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if opts.JSON {
		base = slog.NewJSONHandler(w, handlerOpts)
	} else {
		base = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(slogctx.NewHandler(NewSecureHandler(base), nil))
}

// NewSecureLogger creates a text logger with context attributes and sanitization.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewLogger(w, Options{Verbose: verbose})
}

// NewSecureJSONLogger creates a JSON logger with context attributes and sanitization.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewLogger(w, Options{Verbose: verbose, JSON: true})
}
