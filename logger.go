package simtable

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with simtable-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogAdd logs a record insertion.
func (l *Logger) LogAdd(ctx context.Context, index int, dimension int) {
	l.DebugContext(ctx, "record added",
		"index", index,
		"dimension", dimension,
	)
}

// LogIndexBuild logs an index build.
func (l *Logger) LogIndexBuild(ctx context.Context, size int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"size", size,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index built",
			"size", size,
			"elapsed", elapsed,
		)
	}
}

// LogLookup logs a lookup operation.
func (l *Logger) LogLookup(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "lookup failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "lookup completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogEvaluate logs a retrieval evaluation.
func (l *Logger) LogEvaluate(ctx context.Context, queries, k int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "evaluation failed",
			"queries", queries,
			"k", k,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "evaluation completed",
			"queries", queries,
			"k", k,
			"elapsed", elapsed,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, path string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"path", path,
			"records", records,
		)
	}
}
