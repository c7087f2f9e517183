package checkin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/checkin-engine/internal/logging"
	"github.com/example/checkin-engine/internal/remote"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrMalformedCode):
		return "malformed_code"
	case errors.Is(err, ErrUnknownEventContext):
		return "unknown_event_context"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSyncInProgress):
		return "sync_in_progress"
	case remote.IsPermanent(err):
		return "remote_permanent"
	case remote.IsTransient(err):
		return "remote_transient"
	}
	return "unexpected"
}
