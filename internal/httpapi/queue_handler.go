package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/checkin-engine/internal/checkin"
)

type queueService interface {
	Get(ctx context.Context, id string) (checkin.QueueRecord, error)
	ListByStatus(ctx context.Context, status checkin.Status) ([]checkin.QueueRecord, error)
}

// QueueHandler serves read-only views over the durable queue.
type QueueHandler struct {
	service   queueService
	responder responder
}

// NewQueueHandler wires a QueueHandler over the queue.
func NewQueueHandler(service queueService, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{service: service, responder: newResponder(logger)}
}

// List handles GET /queue. An optional status query parameter filters to
// one lifecycle status; without it every non-terminal record is returned.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var statuses []checkin.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := checkin.Status(raw)
		switch status {
		case checkin.StatusPending, checkin.StatusSyncing, checkin.StatusCommitted, checkin.StatusRejected:
			statuses = []checkin.Status{status}
		default:
			h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidStatus)
			return
		}
	} else {
		statuses = []checkin.Status{checkin.StatusPending, checkin.StatusSyncing}
	}

	records := make([]recordPayload, 0)
	for _, status := range statuses {
		batch, err := h.service.ListByStatus(ctx, status)
		if err != nil {
			h.responder.handleServiceError(ctx, w, err)
			return
		}
		for _, record := range batch {
			records = append(records, queueRecordResponse(record))
		}
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, recordsResponse{Records: records})
}

// Get handles GET /queue/{id}.
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, queueRecordResponse(record))
}

// ListCheckins handles GET /checkins/{eventID}: committed check-ins for
// one event, the device's local view of the attendance list.
func (h *QueueHandler) ListCheckins(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := mux.Vars(r)["eventID"]

	committed, err := h.service.ListByStatus(ctx, checkin.StatusCommitted)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	records := make([]recordPayload, 0)
	for _, record := range committed {
		if record.EventID == eventID {
			records = append(records, queueRecordResponse(record))
		}
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, recordsResponse{Records: records})
}

type recordPayload struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	AttendeeID      string    `json:"attendee_id"`
	DeviceID        string    `json:"device_id"`
	ClientTimestamp time.Time `json:"client_timestamp"`
	Status          string    `json:"status"`
	AttemptCount    int       `json:"attempt_count"`
	NextAttemptAt   time.Time `json:"next_attempt_at,omitzero"`
	LastError       string    `json:"last_error,omitempty"`
	RejectReason    string    `json:"reject_reason,omitempty"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type recordsResponse struct {
	Records []recordPayload `json:"records"`
}

func queueRecordResponse(record checkin.QueueRecord) recordPayload {
	return recordPayload{
		ID:              record.ID,
		EventID:         record.EventID,
		AttendeeID:      record.AttendeeID,
		DeviceID:        record.DeviceID,
		ClientTimestamp: record.ClientTimestamp,
		Status:          string(record.Status),
		AttemptCount:    record.AttemptCount,
		NextAttemptAt:   record.NextAttemptAt,
		LastError:       record.LastError,
		RejectReason:    record.RejectReason,
		EnqueuedAt:      record.EnqueuedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}
