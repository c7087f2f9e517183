package checkin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/checkin-engine/internal/checkin"
	"github.com/example/checkin-engine/internal/scancode"
	"github.com/example/checkin-engine/internal/testfixtures"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newTestIngestor(t *testing.T) (*checkin.Ingestor, *testfixtures.MemoryQueue) {
	t.Helper()
	now := func() time.Time { return testEpoch }
	queue := newStubQueue(t, now)
	directory := &stubDirectory{events: map[string]checkin.Event{
		"evt-1": {ID: "evt-1", Name: "Spring Meetup", SigningKey: testSigningKey},
	}}
	ingestor := checkin.NewIngestor(queue, directory, "device-1", now, nil)
	ingestor.SetActiveEvent("evt-1")
	return ingestor, queue
}

func signedCode(t *testing.T, eventID, attendeeID string) string {
	t.Helper()
	code, err := scancode.Encode(testSigningKey, eventID, attendeeID)
	if err != nil {
		t.Fatalf("encode code: %v", err)
	}
	return code
}

func TestIngestorSubmitAcceptsValidScan(t *testing.T) {
	ingestor, queue := newTestIngestor(t)
	ctx := context.Background()
	capturedAt := testEpoch.Add(5 * time.Minute)

	record, err := ingestor.Submit(ctx, signedCode(t, "evt-1", "att-1"), capturedAt)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if record.Status != checkin.StatusPending {
		t.Errorf("status = %q, want pending", record.Status)
	}
	if record.EventID != "evt-1" || record.AttendeeID != "att-1" {
		t.Errorf("key = %s, want evt-1/att-1", record.Key())
	}
	if record.DeviceID != "device-1" {
		t.Errorf("device = %q, want device-1", record.DeviceID)
	}
	if !record.ClientTimestamp.Equal(capturedAt) {
		t.Errorf("client timestamp = %v, want %v", record.ClientTimestamp, capturedAt)
	}
	if record.ID == "" {
		t.Errorf("record id must be generated")
	}

	stored, err := queue.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("record not in queue: %v", err)
	}
	if stored.Status != checkin.StatusPending {
		t.Errorf("stored status = %q, want pending", stored.Status)
	}
}

func TestIngestorSubmitAcceptsDuplicateScans(t *testing.T) {
	// A repeated scan of the same badge enqueues a second record; the sync
	// worker settles it against durable state, not the ingestor.
	ingestor, _ := newTestIngestor(t)
	ctx := context.Background()
	code := signedCode(t, "evt-1", "att-1")

	first, err := ingestor.Submit(ctx, code, testEpoch)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := ingestor.Submit(ctx, code, testEpoch.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if first.ID == second.ID {
		t.Errorf("duplicate scans must create distinct records")
	}
}

func TestIngestorSubmitRejections(t *testing.T) {
	ingestor, _ := newTestIngestor(t)
	ctx := context.Background()

	t.Run("malformed payload", func(t *testing.T) {
		_, err := ingestor.Submit(ctx, "not-a-code", testEpoch)
		if !errors.Is(err, checkin.ErrMalformedCode) {
			t.Errorf("err = %v, want ErrMalformedCode", err)
		}
	})

	t.Run("tampered checksum", func(t *testing.T) {
		code := signedCode(t, "evt-1", "att-1")
		tampered := code[:len(code)-1] + flipHexDigit(code[len(code)-1])
		_, err := ingestor.Submit(ctx, tampered, testEpoch)
		if !errors.Is(err, checkin.ErrMalformedCode) {
			t.Errorf("err = %v, want ErrMalformedCode", err)
		}
	})

	t.Run("code for another event", func(t *testing.T) {
		other, err := scancode.Encode(testSigningKey, "evt-2", "att-1")
		if err != nil {
			t.Fatal(err)
		}
		_, err = ingestor.Submit(ctx, other, testEpoch)
		if !errors.Is(err, checkin.ErrUnknownEventContext) {
			t.Errorf("err = %v, want ErrUnknownEventContext", err)
		}
	})

	t.Run("no active event", func(t *testing.T) {
		ingestor.SetActiveEvent("")
		defer ingestor.SetActiveEvent("evt-1")
		_, err := ingestor.Submit(ctx, signedCode(t, "evt-1", "att-1"), testEpoch)
		if !errors.Is(err, checkin.ErrUnknownEventContext) {
			t.Errorf("err = %v, want ErrUnknownEventContext", err)
		}
	})

	t.Run("active event not registered", func(t *testing.T) {
		ingestor.SetActiveEvent("evt-ghost")
		defer ingestor.SetActiveEvent("evt-1")
		ghost, err := scancode.Encode(testSigningKey, "evt-ghost", "att-1")
		if err != nil {
			t.Fatal(err)
		}
		_, err = ingestor.Submit(ctx, ghost, testEpoch)
		if !errors.Is(err, checkin.ErrUnknownEventContext) {
			t.Errorf("err = %v, want ErrUnknownEventContext", err)
		}
	})
}

func TestIngestorGeneratesUniqueIDs(t *testing.T) {
	ingestor, _ := newTestIngestor(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		record, err := ingestor.Submit(ctx, signedCode(t, "evt-1", "att-1"), testEpoch)
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		if seen[record.ID] {
			t.Fatalf("duplicate id %q", record.ID)
		}
		seen[record.ID] = true
	}
}

func flipHexDigit(b byte) string {
	if b == '0' {
		return "1"
	}
	return "0"
}
