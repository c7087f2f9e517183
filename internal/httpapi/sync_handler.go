package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/checkin-engine/internal/checkin"
)

type syncService interface {
	RunOnce(ctx context.Context) error
	StaleWarnings(ctx context.Context) ([]checkin.StaleWarning, error)
}

type connectivityControl interface {
	Online() bool
	SetOnline(online bool)
}

// SyncHandler triggers sync passes and reports engine health.
type SyncHandler struct {
	service      syncService
	connectivity connectivityControl
	responder    responder
}

// NewSyncHandler wires a SyncHandler over the worker and the connectivity
// monitor.
func NewSyncHandler(service syncService, connectivity connectivityControl, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{service: service, connectivity: connectivity, responder: newResponder(logger)}
}

// Run handles POST /sync/run: a manual sync trigger. A pass already in
// flight yields 409.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RunOnce(r.Context()); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, statusResponse{Status: "completed"})
}

// StaleWarnings handles GET /warnings/stale.
func (h *SyncHandler) StaleWarnings(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.service.StaleWarnings(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]staleWarningPayload, 0, len(warnings))
	for _, warning := range warnings {
		payload = append(payload, staleWarningPayload{
			RecordID:   warning.RecordID,
			EventID:    warning.Key.EventID,
			AttendeeID: warning.Key.AttendeeID,
			EnqueuedAt: warning.EnqueuedAt,
			Attempts:   warning.Attempts,
			LastError:  warning.LastError,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, staleWarningsResponse{Warnings: payload})
}

type connectivityRequest struct {
	Online bool `json:"online"`
}

// SetConnectivity handles PUT /connectivity: the platform layer reports
// network state changes here.
func (h *SyncHandler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	h.connectivity.SetOnline(req.Online)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, connectivityRequest{Online: h.connectivity.Online()})
}

// GetConnectivity handles GET /connectivity.
func (h *SyncHandler) GetConnectivity(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, connectivityRequest{Online: h.connectivity.Online()})
}

// Healthz handles GET /healthz.
func (h *SyncHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ok"})
}

type statusResponse struct {
	Status string `json:"status"`
}

type staleWarningPayload struct {
	RecordID   string    `json:"record_id"`
	EventID    string    `json:"event_id"`
	AttendeeID string    `json:"attendee_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
}

type staleWarningsResponse struct {
	Warnings []staleWarningPayload `json:"warnings"`
}
