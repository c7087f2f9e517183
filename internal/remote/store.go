// Package remote abstracts the server-side attendance store behind a
// capability interface. It is the only seam in the engine allowed to
// perform network I/O; every other component is testable against the
// in-memory implementation.
package remote

import (
	"context"
	"time"
)

// Key identifies one attendance document: the (event, attendee) pair.
type Key struct {
	EventID    string
	AttendeeID string
}

// String renders the wire form "{event_id}/{attendee_id}".
func (k Key) String() string {
	return k.EventID + "/" + k.AttendeeID
}

// AttendanceRecord is the server-side materialization of a committed
// check-in. Revision is a server-maintained counter used to detect
// concurrent writes; CommittedAt is the authoritative server timestamp.
type AttendanceRecord struct {
	Key         Key
	Revision    int64
	CommittedAt time.Time
	DeviceID    string
}

// WritePayload carries the device's claim for a conditional write. The
// server assigns the committed timestamp and revision itself.
type WritePayload struct {
	DeviceID        string
	ClientTimestamp time.Time
}

// WriteOutcome is the visible result of a conditional write that reached
// the server.
type WriteOutcome int

const (
	// WriteCommitted means the server accepted the write at the expected
	// revision.
	WriteCommitted WriteOutcome = iota
	// WriteConflict means another writer committed the key first; Current
	// holds the winning record.
	WriteConflict
)

// WriteResult reports a conditional write that produced a definite answer.
type WriteResult struct {
	Outcome  WriteOutcome
	Revision int64
	Current  *AttendanceRecord
}

// Store is the capability interface to the remote attendance store. Any
// document or key-value backend with an atomic "write if current revision
// equals expected" primitive can implement it.
//
// Errors returned by either method are classified via IsTransient and
// IsPermanent; anything unclassified is treated as transient by callers,
// because losing an attendance record is worse than delaying it.
type Store interface {
	// ConditionalWrite creates or replaces the record for key only when its
	// current revision equals expectedRevision (0 for "must not exist").
	ConditionalWrite(ctx context.Context, key Key, payload WritePayload, expectedRevision int64) (WriteResult, error)
	// ReadCurrent returns the current record for key, or ErrNotFound.
	ReadCurrent(ctx context.Context, key Key) (AttendanceRecord, error)
}
