package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/checkin-engine/internal/scancode"
)

// Ingestor admits raw scan payloads into the durable queue. Admission is
// local-only: no network I/O happens on this path, so a scan is accepted
// in the time it takes to validate the code and write one row.
type Ingestor struct {
	queue    Queue
	events   EventDirectory
	deviceID string
	now      func() time.Time
	logger   *slog.Logger

	mu            sync.RWMutex
	activeEventID string

	seq atomic.Uint64
}

// NewIngestor creates an Ingestor for the given device. The now function is
// injectable for tests; nil means time.Now.
func NewIngestor(queue Queue, events EventDirectory, deviceID string, now func() time.Time, logger *slog.Logger) *Ingestor {
	if now == nil {
		now = time.Now
	}
	in := &Ingestor{
		queue:    queue,
		events:   events,
		deviceID: deviceID,
		now:      now,
		logger:   defaultLogger(logger),
	}
	// Seed the per-device sequence from the clock so IDs stay unique across
	// process restarts even before the first enqueue.
	in.seq.Store(uint64(now().UnixNano()))
	return in
}

// SetActiveEvent selects the event this device is currently admitting scans
// for. An empty id deselects; subsequent scans fail with
// ErrUnknownEventContext.
func (in *Ingestor) SetActiveEvent(id string) {
	in.mu.Lock()
	in.activeEventID = id
	in.mu.Unlock()
}

// ActiveEvent returns the currently selected event id, or empty.
func (in *Ingestor) ActiveEvent() string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.activeEventID
}

// Submit validates a raw scan payload and, if it is well formed and belongs
// to the active event, appends a Pending record to the durable queue. The
// returned record carries the generated check-in id.
//
// Duplicate scans of the same attendee are accepted here on purpose; the
// dedup gate in the sync worker settles them per the queue's durable state
// rather than per what the scanner happens to remember.
func (in *Ingestor) Submit(ctx context.Context, rawCode string, capturedAt time.Time) (QueueRecord, error) {
	logger := serviceLogger(ctx, in.logger, "ingestor", "submit", "device_id", in.deviceID)

	code, err := scancode.Parse(rawCode)
	if err != nil {
		logger.WarnContext(ctx, "scan rejected: malformed payload")
		return QueueRecord{}, fmt.Errorf("%w: %v", ErrMalformedCode, err)
	}

	activeID := in.ActiveEvent()
	if activeID == "" {
		logger.WarnContext(ctx, "scan rejected: no active event selected")
		return QueueRecord{}, fmt.Errorf("%w: no active event", ErrUnknownEventContext)
	}
	if code.EventID != activeID {
		logger.WarnContext(ctx, "scan rejected: event mismatch",
			"scanned_event_id", code.EventID, "active_event_id", activeID)
		return QueueRecord{}, fmt.Errorf("%w: code is for event %q", ErrUnknownEventContext, code.EventID)
	}

	event, err := in.events.GetEvent(ctx, code.EventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return QueueRecord{}, fmt.Errorf("%w: event %q not registered", ErrUnknownEventContext, code.EventID)
		}
		return QueueRecord{}, fmt.Errorf("lookup event %q: %w", code.EventID, err)
	}
	if err := code.Verify(event.SigningKey); err != nil {
		logger.WarnContext(ctx, "scan rejected: checksum mismatch", "event_id", code.EventID)
		return QueueRecord{}, fmt.Errorf("%w: checksum mismatch", ErrMalformedCode)
	}

	if capturedAt.IsZero() {
		capturedAt = in.now()
	}

	record := QueueRecord{
		CheckinEvent: CheckinEvent{
			ID:              in.nextID(),
			EventID:         code.EventID,
			AttendeeID:      code.AttendeeID,
			DeviceID:        in.deviceID,
			ClientTimestamp: capturedAt.UTC(),
			Status:          StatusPending,
		},
	}

	stored, err := in.queue.Enqueue(ctx, record)
	if err != nil {
		logger.ErrorContext(ctx, "enqueue failed", "error", err)
		return QueueRecord{}, fmt.Errorf("enqueue check-in: %w", err)
	}

	logger.InfoContext(ctx, "scan accepted",
		"checkin_id", stored.ID,
		"event_id", stored.EventID,
		"attendee_id", stored.AttendeeID)
	return stored, nil
}

func (in *Ingestor) nextID() string {
	return fmt.Sprintf("%s-%016x", in.deviceID, in.seq.Add(1))
}
