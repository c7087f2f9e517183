package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/checkin-engine/internal/remote"
)

// Resolver settles the outcome of a remote write attempt into a terminal
// queue status. The rule is single: the remote store's committed record is
// authoritative, first write wins, and a losing record is Rejected with a
// duplicate reason rather than retried.
type Resolver struct {
	queue  Queue
	index  *DedupIndex
	store  remote.Store
	logger *slog.Logger
}

// NewResolver wires a Resolver over the queue, dedup index, and remote
// store.
func NewResolver(queue Queue, index *DedupIndex, store remote.Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		queue:  queue,
		index:  index,
		store:  store,
		logger: defaultLogger(logger),
	}
}

// Resolve applies a definite write result to record. The record must be in
// Syncing status.
func (r *Resolver) Resolve(ctx context.Context, record QueueRecord, result remote.WriteResult) error {
	logger := serviceLogger(ctx, r.logger, "resolver", "resolve",
		"checkin_id", record.ID, "key", record.Key().String())

	switch result.Outcome {
	case remote.WriteCommitted:
		return r.commit(ctx, logger, record)

	case remote.WriteConflict:
		if result.Current != nil && result.Current.DeviceID == record.DeviceID {
			// Our own earlier write landed; the retry collided with it.
			logger.InfoContext(ctx, "conflict against own committed write, treating as committed",
				"revision", result.Current.Revision)
			return r.commit(ctx, logger, record)
		}
		winner := ""
		if result.Current != nil {
			winner = result.Current.DeviceID
		}
		logger.InfoContext(ctx, "check-in lost to earlier commit",
			"winning_device_id", winner)
		return r.reject(ctx, record, ReasonDuplicateCheckin)

	default:
		return fmt.Errorf("unhandled write outcome %d for record %s", result.Outcome, record.ID)
	}
}

// RejectDuplicate settles a record whose dedup key is already committed,
// without contacting the remote store.
func (r *Resolver) RejectDuplicate(ctx context.Context, record QueueRecord) error {
	serviceLogger(ctx, r.logger, "resolver", "reject_duplicate",
		"checkin_id", record.ID, "key", record.Key().String()).
		InfoContext(ctx, "duplicate check-in settled locally")
	return r.reject(ctx, record, ReasonDuplicateCheckin)
}

// RejectPermanent settles a record whose write the remote store refused
// for a non-conflict, non-retryable reason. The dedup key is released, not
// committed: nothing holds it remotely, so a fresh scan may try again.
func (r *Resolver) RejectPermanent(ctx context.Context, record QueueRecord) error {
	serviceLogger(ctx, r.logger, "resolver", "reject_permanent",
		"checkin_id", record.ID, "key", record.Key().String()).
		WarnContext(ctx, "remote store permanently rejected check-in")

	if err := r.queue.MarkTerminal(ctx, record.ID, StatusRejected, ReasonRemoteRejected); err != nil {
		return fmt.Errorf("mark record %s rejected: %w", record.ID, err)
	}
	r.index.Release(record.Key(), record.ID)
	return nil
}

// VerifyAmbiguous handles a write attempt that failed without a definite
// answer: the write may or may not have been applied. It reads the current
// remote record back. A record committed by this device means the write
// landed; one committed by another device means we lost; no record means
// the write did not land and the attempt should be retried.
//
// The boolean reports whether the record reached a terminal status.
func (r *Resolver) VerifyAmbiguous(ctx context.Context, record QueueRecord) (bool, error) {
	logger := serviceLogger(ctx, r.logger, "resolver", "verify_ambiguous",
		"checkin_id", record.ID, "key", record.Key().String())

	current, err := r.store.ReadCurrent(ctx, remote.Key{
		EventID:    record.EventID,
		AttendeeID: record.AttendeeID,
	})
	switch {
	case errors.Is(err, remote.ErrNotFound):
		logger.DebugContext(ctx, "ambiguous write did not land, will retry")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("read back after ambiguous write: %w", err)
	}

	if current.DeviceID == record.DeviceID {
		logger.InfoContext(ctx, "ambiguous write confirmed committed",
			"revision", current.Revision)
		return true, r.commit(ctx, logger, record)
	}

	logger.InfoContext(ctx, "ambiguous write lost to another device",
		"winning_device_id", current.DeviceID)
	return true, r.reject(ctx, record, ReasonDuplicateCheckin)
}

func (r *Resolver) commit(ctx context.Context, logger *slog.Logger, record QueueRecord) error {
	if err := r.queue.MarkTerminal(ctx, record.ID, StatusCommitted, ""); err != nil {
		return fmt.Errorf("mark record %s committed: %w", record.ID, err)
	}
	r.index.MarkCommitted(record.Key())
	logger.InfoContext(ctx, "check-in committed")
	return nil
}

// reject settles a duplicate: some device's check-in is committed for the
// key, so the index is marked committed alongside.
func (r *Resolver) reject(ctx context.Context, record QueueRecord, reason string) error {
	if err := r.queue.MarkTerminal(ctx, record.ID, StatusRejected, reason); err != nil {
		return fmt.Errorf("mark record %s rejected: %w", record.ID, err)
	}
	r.index.MarkCommitted(record.Key())
	return nil
}
