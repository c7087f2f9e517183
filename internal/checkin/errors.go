package checkin

import "errors"

var (
	// ErrMalformedCode is returned when a scanned payload fails schema or
	// checksum validation. Surfaced immediately to the scanning UI.
	ErrMalformedCode = errors.New("checkin: malformed code")
	// ErrUnknownEventContext is returned when no active event is selected on
	// the device, or the scanned code belongs to a different event.
	ErrUnknownEventContext = errors.New("checkin: unknown event context")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("checkin: not found")
	// ErrSyncInProgress is returned by RunOnce when another worker pass is
	// already active; the trigger is a no-op.
	ErrSyncInProgress = errors.New("checkin: sync already in progress")
)

// Reject reasons recorded on terminal records. DuplicateCheckin is an
// expected outcome, surfaced as informational rather than as a failure.
const (
	ReasonDuplicateCheckin = "duplicate_checkin"
	ReasonRemoteRejected   = "remote_rejected"
)
