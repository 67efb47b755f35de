package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup logs to stderr, leaving stdout to command output.
func Setup(level string, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupFile sends logs to path so a full-screen terminal stays clean. The
// returned close func releases the file.
func SetupFile(path, level, format string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	SetupWriter(f, level, format)
	return f.Close, nil
}

func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func WithSearchID(ctx context.Context, searchID string) context.Context {
	return context.WithValue(ctx, contextKey{}, searchID)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if searchID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("search_id", searchID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
