// Package logging carries a *slog.Logger and a request ID through
// context.Context so every layer logs with the same correlation fields.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{ name string }

var (
	loggerKey    = ctxKey{name: "logger"}
	requestIDKey = ctxKey{name: "request_id"}
)

// GetLoggerFromContext returns the logger installed in ctx, falling back to
// a JSON stdout logger. The request ID, when present, is attached as a
// field.
func GetLoggerFromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(loggerKey).(*slog.Logger)
	if !ok {
		l = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if requestID := GetRequestIDFromCtx(ctx); requestID != "" {
		l = l.With(slog.String("request_id", requestID))
	}
	return l
}

// GetLoggerFromContextWithOp returns the context logger with the operation
// name attached.
func GetLoggerFromContextWithOp(ctx context.Context, op string) *slog.Logger {
	return GetLoggerFromContext(ctx).With(slog.String("op", op))
}

func MakeContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}
