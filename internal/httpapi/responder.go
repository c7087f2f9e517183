// Package httpapi exposes the operator surface of the engine over HTTP:
// submitting scans, inspecting the queue, and triggering sync passes. It is
// a thin JSON layer; all behavior lives in the checkin package.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/checkin-engine/internal/checkin"
	"github.com/example/checkin-engine/internal/logging"
)

var (
	errBadRequestBody = errors.New("invalid request body")
	errMissingCode    = errors.New("code is required")
	errInvalidStatus  = errors.New("unknown status filter")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps checkin sentinels to HTTP statuses.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
	case errors.Is(err, checkin.ErrMalformedCode):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "MALFORMED_CODE",
			Message:   "the scanned code is not valid",
		})
	case errors.Is(err, checkin.ErrUnknownEventContext):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "UNKNOWN_EVENT_CONTEXT",
			Message:   "the scanned code does not belong to the active event",
		})
	case errors.Is(err, checkin.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "resource not found"})
	case errors.Is(err, checkin.ErrSyncInProgress):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SYNC_IN_PROGRESS",
			Message:   "a sync pass is already running",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error",
			"error", err, "error_kind", checkin.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
}
