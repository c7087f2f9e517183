package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNotFound is returned by ReadCurrent when no record exists for the key.
	ErrNotFound = errors.New("remote: not found")
	// ErrTransient marks failures a later retry may resolve.
	ErrTransient = errors.New("remote: transient failure")
	// ErrPermanent marks failures retrying cannot change, such as a
	// server-side validation rejection or a closed event.
	ErrPermanent = errors.New("remote: permanent failure")
)

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// Permanent wraps err as a terminal failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}

// IsTransient reports whether err should be retried later. Timeouts and
// cancellations count as transient: the write may or may not have landed,
// and the resolver re-verifies by reading back.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// IsPermanent reports whether err is terminal.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
