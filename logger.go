package embedvault

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vault-specific helpers.
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

// WithModality adds a modality field to the logger.
func (l *Logger) WithModality(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("modality", name),
	}
}

// LogIngest logs an ingest operation.
func (l *Logger) LogIngest(ctx context.Context, modality, id string, deduplicated bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"modality", modality,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "ingest completed",
			"modality", modality,
			"id", id,
			"deduplicated", deduplicated,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, modality string, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"modality", modality,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"modality", modality,
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogFlush logs a flush operation.
func (l *Logger) LogFlush(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed", "error", err)
	} else {
		l.InfoContext(ctx, "flush completed")
	}
}

// LogWipe logs a wipe operation.
func (l *Logger) LogWipe(ctx context.Context, target string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "wipe failed",
			"target", target,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "wipe completed",
			"target", target,
		)
	}
}
