package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same identity already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a write violates a schema constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrInvalidTransition is returned when a status update does not match the
	// record's current status. Status transitions are guarded in SQL so two
	// workers can never move the same record concurrently.
	ErrInvalidTransition = errors.New("persistence: invalid status transition")
)
