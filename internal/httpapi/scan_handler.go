package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/checkin-engine/internal/checkin"
)

type scanService interface {
	Submit(ctx context.Context, rawCode string, capturedAt time.Time) (checkin.QueueRecord, error)
	ActiveEvent() string
	SetActiveEvent(id string)
}

// ScanHandler accepts scanned codes and manages the active event
// selection.
type ScanHandler struct {
	service   scanService
	responder responder
}

// NewScanHandler wires a ScanHandler over the ingestor.
func NewScanHandler(service scanService, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{service: service, responder: newResponder(logger)}
}

type scanRequest struct {
	Code       string    `json:"code"`
	CapturedAt time.Time `json:"captured_at,omitzero"`
}

// Submit handles POST /scans.
func (h *ScanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingCode)
		return
	}

	record, err := h.service.Submit(r.Context(), req.Code, req.CapturedAt)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, queueRecordResponse(record))
}

type activeEventRequest struct {
	EventID string `json:"event_id"`
}

// SetActiveEvent handles PUT /events/active.
func (h *ScanHandler) SetActiveEvent(w http.ResponseWriter, r *http.Request) {
	var req activeEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	h.service.SetActiveEvent(strings.TrimSpace(req.EventID))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, activeEventRequest{EventID: h.service.ActiveEvent()})
}

// GetActiveEvent handles GET /events/active.
func (h *ScanHandler) GetActiveEvent(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, activeEventRequest{EventID: h.service.ActiveEvent()})
}
