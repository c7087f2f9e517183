package checkin_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/checkin-engine/internal/checkin"
	"github.com/example/checkin-engine/internal/remote"
	"github.com/example/checkin-engine/internal/testfixtures"
)

func newTestResolver(t *testing.T) (*checkin.Resolver, *testfixtures.MemoryQueue, *checkin.DedupIndex, *remote.MemStore) {
	t.Helper()
	now := func() time.Time { return testEpoch }
	queue := newStubQueue(t, now)
	index := checkin.NewDedupIndex()
	store := remote.NewMemStore(now)
	resolver := checkin.NewResolver(queue, index, store, nil)
	return resolver, queue, index, store
}

func TestResolverCommit(t *testing.T) {
	resolver, queue, index, _ := newTestResolver(t)
	ctx := context.Background()

	record := mustEnqueue(t, queue, "rec-1", "evt-1", "att-1")
	if err := queue.MarkSyncing(ctx, record.ID); err != nil {
		t.Fatal(err)
	}

	err := resolver.Resolve(ctx, record, remote.WriteResult{Outcome: remote.WriteCommitted, Revision: 1})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	mustStatus(t, queue, record.ID, checkin.StatusCommitted)
	if !index.IsCommitted(record.Key()) {
		t.Errorf("dedup key must be committed after resolution")
	}
}

func TestResolverConflictWithOtherDevice(t *testing.T) {
	resolver, queue, index, _ := newTestResolver(t)
	ctx := context.Background()

	record := mustEnqueue(t, queue, "rec-1", "evt-1", "att-1")
	if err := queue.MarkSyncing(ctx, record.ID); err != nil {
		t.Fatal(err)
	}

	winner := &remote.AttendanceRecord{
		Key:      remote.Key{EventID: "evt-1", AttendeeID: "att-1"},
		Revision: 1,
		DeviceID: "device-2",
	}
	err := resolver.Resolve(ctx, record, remote.WriteResult{
		Outcome:  remote.WriteConflict,
		Revision: 1,
		Current:  winner,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	settled := mustStatus(t, queue, record.ID, checkin.StatusRejected)
	if settled.RejectReason != checkin.ReasonDuplicateCheckin {
		t.Errorf("reject reason = %q, want %q", settled.RejectReason, checkin.ReasonDuplicateCheckin)
	}
	if !index.IsCommitted(record.Key()) {
		t.Errorf("losing a conflict still settles the dedup key")
	}
}

func TestResolverConflictWithOwnWriteIsCommit(t *testing.T) {
	// A retried write colliding with our own earlier commit is the
	// redelivery case, not a real conflict.
	resolver, queue, _, _ := newTestResolver(t)
	ctx := context.Background()

	record := mustEnqueue(t, queue, "rec-1", "evt-1", "att-1")
	if err := queue.MarkSyncing(ctx, record.ID); err != nil {
		t.Fatal(err)
	}

	own := &remote.AttendanceRecord{
		Key:      remote.Key{EventID: "evt-1", AttendeeID: "att-1"},
		Revision: 1,
		DeviceID: "device-1",
	}
	err := resolver.Resolve(ctx, record, remote.WriteResult{
		Outcome:  remote.WriteConflict,
		Revision: 1,
		Current:  own,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	mustStatus(t, queue, record.ID, checkin.StatusCommitted)
}

func TestResolverRejectPermanent(t *testing.T) {
	resolver, queue, index, _ := newTestResolver(t)
	ctx := context.Background()

	record := mustEnqueue(t, queue, "rec-1", "evt-1", "att-1")
	index.TryReserve(record.Key(), record.ID)
	if err := queue.MarkSyncing(ctx, record.ID); err != nil {
		t.Fatal(err)
	}

	if err := resolver.RejectPermanent(ctx, record); err != nil {
		t.Fatalf("RejectPermanent: %v", err)
	}
	settled := mustStatus(t, queue, record.ID, checkin.StatusRejected)
	if settled.RejectReason != checkin.ReasonRemoteRejected {
		t.Errorf("reject reason = %q, want %q", settled.RejectReason, checkin.ReasonRemoteRejected)
	}
	// The key is not committed anywhere; a fresh scan may reserve it.
	if res := index.TryReserve(record.Key(), "rec-2"); res.Outcome != checkin.Reserved {
		t.Errorf("key must be free after a permanent rejection, got %v", res.Outcome)
	}
}

func TestResolverVerifyAmbiguous(t *testing.T) {
	t.Run("own write landed", func(t *testing.T) {
		resolver, queue, _, store := newTestResolver(t)
		ctx := context.Background()
		record := mustEnqueue(t, queue, "rec-1", "evt-1", "att-1")
		if err := queue.MarkSyncing(ctx, record.ID); err != nil {
			t.Fatal(err)
		}
		store.Seed(remote.AttendanceRecord{
			Key:      remote.Key{EventID: "evt-1", AttendeeID: "att-1"},
			Revision: 1,
			DeviceID: "device-1",
		})

		resolved, err := resolver.VerifyAmbiguous(ctx, record)
		if err != nil {
			t.Fatalf("VerifyAmbiguous: %v", err)
		}
		if !resolved {
			t.Fatalf("record must be settled when its write landed")
		}
		mustStatus(t, queue, record.ID, checkin.StatusCommitted)
	})

	t.Run("another device won meanwhile", func(t *testing.T) {
		resolver, queue, _, store := newTestResolver(t)
		ctx := context.Background()
		record := mustEnqueue(t, queue, "rec-1", "evt-1", "att-1")
		if err := queue.MarkSyncing(ctx, record.ID); err != nil {
			t.Fatal(err)
		}
		store.Seed(remote.AttendanceRecord{
			Key:      remote.Key{EventID: "evt-1", AttendeeID: "att-1"},
			Revision: 1,
			DeviceID: "device-2",
		})

		resolved, err := resolver.VerifyAmbiguous(ctx, record)
		if err != nil {
			t.Fatalf("VerifyAmbiguous: %v", err)
		}
		if !resolved {
			t.Fatalf("record must be settled when another device committed")
		}
		settled := mustStatus(t, queue, record.ID, checkin.StatusRejected)
		if settled.RejectReason != checkin.ReasonDuplicateCheckin {
			t.Errorf("reject reason = %q, want %q", settled.RejectReason, checkin.ReasonDuplicateCheckin)
		}
	})

	t.Run("write never landed", func(t *testing.T) {
		resolver, queue, _, _ := newTestResolver(t)
		ctx := context.Background()
		record := mustEnqueue(t, queue, "rec-1", "evt-1", "att-1")
		if err := queue.MarkSyncing(ctx, record.ID); err != nil {
			t.Fatal(err)
		}

		resolved, err := resolver.VerifyAmbiguous(ctx, record)
		if err != nil {
			t.Fatalf("VerifyAmbiguous: %v", err)
		}
		if resolved {
			t.Fatalf("record must stay unsettled for a retry")
		}
		mustStatus(t, queue, record.ID, checkin.StatusSyncing)
	})
}
