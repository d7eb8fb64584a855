package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

type loggerContextKey struct{}

var fallbackLogger = slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("logger", "fallback"))

func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return fallbackLogger
	}
	return logger
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// Derive a logger with the given attributes (slog.Attr or key/value pairs) for the rest of ctx
func AddMetaToContext(ctx context.Context, args ...any) context.Context {
	return AddToContext(ctx, FromContext(ctx).With(args...))
}

// Tag every log line of an ingestion run with the run and its window
func AddRunToContext(ctx context.Context, runID string, windowStart, windowEnd time.Time) context.Context {
	return AddMetaToContext(
		ctx,
		slog.String("runID", runID),
		slog.String("windowStart", windowStart.UTC().Format(time.RFC3339)),
		slog.String("windowEnd", windowEnd.UTC().Format(time.RFC3339)),
	)
}
