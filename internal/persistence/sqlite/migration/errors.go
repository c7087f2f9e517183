package migration

import "fmt"

// Error wraps a failure while applying a specific migration version.
type Error struct {
	Version   string
	Operation string
	Err       error
}

// NewError builds a migration error for the given version and operation.
func NewError(version, operation string, err error) *Error {
	return &Error{Version: version, Operation: operation, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("migration: %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("migration %s: %s: %v", e.Version, e.Operation, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
