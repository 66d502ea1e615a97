package frnn

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with frnn-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRadius adds a radius field to the logger.
func (l *Logger) WithRadius(radius float64) *Logger {
	return &Logger{
		Logger: l.Logger.With("radius", radius),
	}
}

// WithMetric adds a metric field to the logger.
func (l *Logger) WithMetric(m Metric) *Logger {
	return &Logger{
		Logger: l.Logger.With("metric", m.String()),
	}
}

// LogBuild logs a hash table build.
func (l *Logger) LogBuild(ctx context.Context, batches, points int, cells int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "hash table build failed",
			"batches", batches,
			"points", points,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "hash table built",
			"batches", batches,
			"points", points,
			"cells", cells,
		)
	}
}

// LogSearch logs a radius search.
func (l *Logger) LogSearch(ctx context.Context, queries, neighbors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "radius search failed",
			"queries", queries,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "radius search completed",
			"queries", queries,
			"neighbors", neighbors,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot "+op+" completed",
			"name", name,
			"bytes", bytes,
		)
	}
}
