package logging

import (
	"context"
	"io"
	"log/slog"
)

type contextKey struct{}

// New returns a JSON logger writing to w at the given level. Every line
// carries the device id so logs shipped off several check-in devices stay
// attributable.
func New(w io.Writer, level slog.Level, deviceID string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	if deviceID != "" {
		logger = logger.With("device_id", deviceID)
	}
	return logger
}

// ContextWithLogger returns a derived context that carries the provided
// logger, so batch- and request-scoped attributes follow the call chain.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger previously attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}
