// Package log provides the logging infrastructure for lawontip.
//
// Loggers are created once at startup and injected into components via
// constructors; components add context with logger.With("component", ...).
// There is no package-level global beyond slog's own default.
//
// Usage:
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	eng, err := engine.New(engine.Config{Logger: logger.With("component", "engine"), ...})
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger. Components accept log.Logger as
// a dependency; using the stdlib type directly keeps full slog ecosystem
// compatibility without a custom interface.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool
}

// New creates a logger writing to os.Stderr with the given configuration.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to w.
// Useful for tests that capture output in a buffer.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Test use only;
// production code should always configure a real logger via New.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
