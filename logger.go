package bitmapist

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with bitmapist-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithKey adds a store key field to the logger.
func (l *Logger) WithKey(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// LogMark logs an event mark across one or more buckets.
func (l *Logger) LogMark(ctx context.Context, event string, id uint64, buckets int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mark failed",
			"event", event,
			"id", id,
			"buckets", buckets,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "mark completed",
			"event", event,
			"id", id,
			"buckets", buckets,
		)
	}
}

// LogAttributeMark logs a single attribute write.
func (l *Logger) LogAttributeMark(ctx context.Context, attribute string, id uint64, value int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "attribute mark failed",
			"attribute", attribute,
			"id", id,
			"value", value,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "attribute mark completed",
			"attribute", attribute,
			"id", id,
			"value", value,
		)
	}
}

// LogBatchMark logs a bulk attribute mark.
func (l *Logger) LogBatchMark(ctx context.Context, attribute string, count, failed int, err error) {
	switch {
	case err != nil && failed > 0:
		l.WarnContext(ctx, "batch mark completed with failures",
			"attribute", attribute,
			"total", count,
			"failed", failed,
			"error", err,
		)
	case err != nil:
		l.ErrorContext(ctx, "batch mark failed",
			"attribute", attribute,
			"total", count,
			"error", err,
		)
	default:
		l.DebugContext(ctx, "batch mark completed",
			"attribute", attribute,
			"count", count,
		)
	}
}

// LogCompose logs a bit operation. Use WithKey to attach the derived key.
func (l *Logger) LogCompose(ctx context.Context, op Op, operands int, ttl time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "bit operation failed",
			"op", op.String(),
			"operands", operands,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "bit operation completed",
			"op", op.String(),
			"operands", operands,
			"ttl", ttl,
		)
	}
}

// LogDelete logs a bulk key deletion.
func (l *Logger) LogDelete(ctx context.Context, pattern string, keys int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"pattern", pattern,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "keys deleted",
			"pattern", pattern,
			"keys", keys,
		)
	}
}
