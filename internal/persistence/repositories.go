package persistence

import (
	"context"
	"time"
)

// QueueRepository exposes the durable check-in queue. The sync worker only
// reads and updates records through this interface; it never touches the
// underlying store directly.
type QueueRepository interface {
	// Enqueue appends one fully-formed Pending record atomically and returns
	// the stored form.
	Enqueue(ctx context.Context, record QueueRecord) (QueueRecord, error)
	// Get returns a record by id.
	Get(ctx context.Context, id string) (QueueRecord, error)
	// PeekReady lists Pending records whose next attempt is due, ordered by
	// next_attempt_at ascending then insertion order. Records held by an
	// in-flight attempt (Syncing) are never returned.
	PeekReady(ctx context.Context, now time.Time, limit int) ([]QueueRecord, error)
	// MarkSyncing moves a Pending record to Syncing.
	MarkSyncing(ctx context.Context, id string) error
	// ReleaseSyncing reverts a Syncing record to Pending, used when an
	// attempt is abandoned mid-flight.
	ReleaseSyncing(ctx context.Context, id string) error
	// ReleaseAllSyncing reverts every Syncing record to Pending. Called once
	// at startup to recover records orphaned by a crash.
	ReleaseAllSyncing(ctx context.Context) (int64, error)
	// MarkTerminal moves a Pending or Syncing record to Committed or
	// Rejected.
	MarkTerminal(ctx context.Context, id string, status CheckinStatus, reason string) error
	// Reschedule returns a record to Pending with a new attempt time and
	// increments its attempt counter.
	Reschedule(ctx context.Context, id string, nextAttempt time.Time, lastError string) error
	// ListByStatus lists records in a given status, insertion order.
	ListByStatus(ctx context.Context, status CheckinStatus) ([]QueueRecord, error)
	// ListStale lists non-terminal records enqueued before the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]QueueRecord, error)
	// PurgeExpired deletes terminal records last updated before the cutoff
	// and reports how many were removed.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventRepository stores the registry of events known to this device.
type EventRepository interface {
	PutEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}
