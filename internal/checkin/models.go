package checkin

import (
	"context"
	"time"
)

// Status tracks a check-in through its lifecycle. Pending → Syncing is set
// only by the sync worker; Syncing → Committed/Rejected only by the conflict
// resolver. Terminal statuses are immutable.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSyncing   Status = "syncing"
	StatusCommitted Status = "committed"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusRejected
}

// DedupKey is the (event, attendee) pair that must map to at most one
// committed check-in.
type DedupKey struct {
	EventID    string
	AttendeeID string
}

// String renders the wire form "{event_id}/{attendee_id}".
func (k DedupKey) String() string {
	return k.EventID + "/" + k.AttendeeID
}

// CheckinEvent is one admitted scan. A later duplicate scan creates a new
// CheckinEvent; existing ones are never mutated after a terminal status.
type CheckinEvent struct {
	ID              string
	EventID         string
	AttendeeID      string
	DeviceID        string
	ClientTimestamp time.Time
	Status          Status
}

// Key returns the dedup key the event counts against.
func (e CheckinEvent) Key() DedupKey {
	return DedupKey{EventID: e.EventID, AttendeeID: e.AttendeeID}
}

// QueueRecord wraps a CheckinEvent with its retry metadata as stored in the
// durable queue.
type QueueRecord struct {
	CheckinEvent
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	RejectReason  string
	EnqueuedAt    time.Time
	UpdatedAt     time.Time
}

// Queue captures the durable queue interactions the engine needs. The
// sqlite-backed repository satisfies it through an adapter; tests use an
// in-memory implementation.
type Queue interface {
	Enqueue(ctx context.Context, record QueueRecord) (QueueRecord, error)
	Get(ctx context.Context, id string) (QueueRecord, error)
	PeekReady(ctx context.Context, now time.Time, limit int) ([]QueueRecord, error)
	MarkSyncing(ctx context.Context, id string) error
	ReleaseSyncing(ctx context.Context, id string) error
	ReleaseAllSyncing(ctx context.Context) (int64, error)
	MarkTerminal(ctx context.Context, id string, status Status, reason string) error
	Reschedule(ctx context.Context, id string, nextAttempt time.Time, lastError string) error
	ListByStatus(ctx context.Context, status Status) ([]QueueRecord, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]QueueRecord, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Event is a registry entry for an event this device can admit scans for.
type Event struct {
	ID         string
	Name       string
	SigningKey []byte
}

// EventDirectory exposes event lookups for scan admission.
type EventDirectory interface {
	GetEvent(ctx context.Context, id string) (Event, error)
}

// StaleWarning surfaces a record that has been waiting longer than the
// configured threshold without reaching a terminal status.
type StaleWarning struct {
	RecordID   string
	Key        DedupKey
	EnqueuedAt time.Time
	Attempts   int
	LastError  string
}
