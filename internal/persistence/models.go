package persistence

import "time"

// CheckinStatus tracks a queued check-in through its lifecycle.
type CheckinStatus string

const (
	// StatusPending marks a record waiting for its next sync attempt.
	StatusPending CheckinStatus = "pending"
	// StatusSyncing marks a record held by an in-flight sync attempt.
	StatusSyncing CheckinStatus = "syncing"
	// StatusCommitted marks a record confirmed by the remote store.
	StatusCommitted CheckinStatus = "committed"
	// StatusRejected marks a record that will never be written remotely.
	StatusRejected CheckinStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s CheckinStatus) Terminal() bool {
	return s == StatusCommitted || s == StatusRejected
}

// Valid reports whether the value is one of the known statuses.
func (s CheckinStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSyncing, StatusCommitted, StatusRejected:
		return true
	}
	return false
}

// QueueRecord is the durable wrapper around a scanned check-in. It lives in
// the local queue from the moment a scan is admitted until the retention
// window expires after a terminal status.
type QueueRecord struct {
	ID              string
	EventID         string
	AttendeeID      string
	DeviceID        string
	ClientTimestamp time.Time
	Status          CheckinStatus
	AttemptCount    int
	NextAttemptAt   time.Time
	LastError       *string
	RejectReason    *string
	EnqueuedAt      time.Time
	UpdatedAt       time.Time
}

// DedupKey identifies the (event, attendee) pair a record counts against.
func (r QueueRecord) DedupKey() string {
	return r.EventID + "/" + r.AttendeeID
}

// Event is a registry entry for an event this device may check attendees
// into. The signing key verifies badge QR payloads for the event.
type Event struct {
	ID         string
	Name       string
	SigningKey []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
