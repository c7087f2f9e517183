package checkin_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/checkin-engine/internal/checkin"
	"github.com/example/checkin-engine/internal/testfixtures"
)

var testEpoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newStubQueue(t *testing.T, now func() time.Time) *testfixtures.MemoryQueue {
	t.Helper()
	return testfixtures.NewMemoryQueue(now)
}

func mustEnqueue(t *testing.T, queue *testfixtures.MemoryQueue, id, eventID, attendeeID string) checkin.QueueRecord {
	t.Helper()
	record, err := queue.Enqueue(context.Background(), checkin.QueueRecord{
		CheckinEvent: checkin.CheckinEvent{
			ID:              id,
			EventID:         eventID,
			AttendeeID:      attendeeID,
			DeviceID:        "device-1",
			ClientTimestamp: testEpoch,
			Status:          checkin.StatusPending,
		},
	})
	if err != nil {
		t.Fatalf("enqueue %s: %v", id, err)
	}
	return record
}

// stubDirectory serves a fixed set of events.
type stubDirectory struct {
	events map[string]checkin.Event
}

func (d *stubDirectory) GetEvent(_ context.Context, id string) (checkin.Event, error) {
	event, ok := d.events[id]
	if !ok {
		return checkin.Event{}, checkin.ErrNotFound
	}
	return event, nil
}

func mustStatus(t *testing.T, queue *testfixtures.MemoryQueue, id string, want checkin.Status) checkin.QueueRecord {
	t.Helper()
	record, err := queue.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	if record.Status != want {
		t.Fatalf("record %s status = %q, want %q", id, record.Status, want)
	}
	return record
}
