package lexgo

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with helpers that tag log records with index
// context (segment ids, manifest generations, field names), keeping
// attribute names consistent across the engine.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps an arbitrary slog handler. A nil handler falls back
// to info-level text on stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = stderrHandler(slog.LevelInfo, false)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger logs human-readable text to stderr at the given level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(stderrHandler(level, false))}
}

// NewJSONLogger logs JSON records to stderr at the given level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(stderrHandler(level, true))}
}

// NoopLogger discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func stderrHandler(level slog.Level, json bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

// LogCommit logs the outcome of one commit.
func (l *Logger) LogCommit(ctx context.Context, docs int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed", "docs", docs, "error", err)
		return
	}
	l.DebugContext(ctx, "commit completed", "docs", docs)
}

// LogSearch logs the outcome of one search.
func (l *Logger) LogSearch(ctx context.Context, hits int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "hits", hits)
}

// LogOptimize logs the outcome of an optimize run.
func (l *Logger) LogOptimize(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "optimize failed", "error", err)
		return
	}
	l.InfoContext(ctx, "optimize completed")
}
