package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/example/checkin-engine/internal/remote"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 15 * time.Second
	defaultStaleThreshold = 30 * time.Minute
	defaultRetention      = 30 * 24 * time.Hour
	purgeEvery            = 40
)

// WorkerConfig tunes the sync worker. Zero values take the defaults.
type WorkerConfig struct {
	// BatchSize caps how many ready records one pass claims at a time.
	BatchSize int
	// PollInterval bounds how long Run sleeps between passes when no
	// connectivity signal arrives.
	PollInterval time.Duration
	// StaleThreshold is how long a record may stay non-terminal before it
	// appears in StaleWarnings.
	StaleThreshold time.Duration
	// Retention is how long terminal records are kept before purging.
	Retention time.Duration
	// Backoff schedules retries after transient failures.
	Backoff *Backoff
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = defaultStaleThreshold
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.Backoff == nil {
		c.Backoff = NewBackoff(0, 0)
	}
	return c
}

// Worker drains the durable queue toward the remote store. Exactly one
// pass runs at a time; RunOnce from a second caller while a pass is active
// reports ErrSyncInProgress instead of interleaving.
type Worker struct {
	queue        Queue
	index        *DedupIndex
	resolver     *Resolver
	store        remote.Store
	connectivity Connectivity
	cfg          WorkerConfig
	now          func() time.Time
	logger       *slog.Logger

	running atomic.Bool
	passes  atomic.Uint64
}

// NewWorker wires a Worker. The now function is injectable for tests; nil
// means time.Now.
func NewWorker(queue Queue, index *DedupIndex, resolver *Resolver, store remote.Store, connectivity Connectivity, cfg WorkerConfig, now func() time.Time, logger *slog.Logger) *Worker {
	if now == nil {
		now = time.Now
	}
	return &Worker{
		queue:        queue,
		index:        index,
		resolver:     resolver,
		store:        store,
		connectivity: connectivity,
		cfg:          cfg.withDefaults(),
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// Run drives the worker until ctx is cancelled: a pass on startup, on each
// reconnect signal, and at least every PollInterval so records whose
// backoff has elapsed are retried. Terminal records past retention are
// purged periodically.
func (w *Worker) Run(ctx context.Context) error {
	logger := serviceLogger(ctx, w.logger, "sync_worker", "run")
	changes, stop := w.connectivity.Changes()
	defer stop()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) && ctx.Err() == nil {
			logger.ErrorContext(ctx, "sync pass failed", "error", err)
		}
		// First pass and every purgeEvery-th after it.
		if w.passes.Load()%purgeEvery == 1 {
			w.purge(ctx, logger)
		}

		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "sync worker stopping")
			return ctx.Err()
		case online := <-changes:
			if !online {
				continue
			}
			logger.InfoContext(ctx, "connectivity restored, starting sync pass")
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single sync pass: claim ready records in batches and
// attempt each one, until the queue has nothing ready or ctx is cancelled.
// Offline, the pass is a no-op. A pass already in flight yields
// ErrSyncInProgress.
func (w *Worker) RunOnce(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer w.running.Store(false)
	w.passes.Add(1)

	logger := serviceLogger(ctx, w.logger, "sync_worker", "pass")

	if !w.connectivity.Online() {
		logger.DebugContext(ctx, "offline, skipping sync pass")
		return nil
	}

	var attempted, settled int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := w.queue.PeekReady(ctx, w.now(), w.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("peek ready records: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		progressed := false
		for _, record := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			attempted++
			done, err := w.processRecord(ctx, record)
			if err != nil && ctx.Err() == nil {
				logger.ErrorContext(ctx, "record attempt failed",
					"checkin_id", record.ID, "error", err, "error_kind", ErrorKind(err))
			}
			if done {
				settled++
				progressed = true
			}
		}
		// Every record in the batch was skipped or rescheduled; a tighter
		// loop would just spin against the same backoff timestamps.
		if !progressed {
			break
		}
	}

	if attempted > 0 {
		logger.InfoContext(ctx, "sync pass finished", "attempted", attempted, "settled", settled)
	}
	return nil
}

// processRecord pushes one Pending record through the dedup gate and a
// remote write attempt. The boolean reports whether the record reached a
// terminal status.
func (w *Worker) processRecord(ctx context.Context, record QueueRecord) (bool, error) {
	key := record.Key()

	switch res := w.index.TryReserve(key, record.ID); res.Outcome {
	case AlreadyCommitted:
		if err := w.resolver.RejectDuplicate(ctx, record); err != nil {
			return false, err
		}
		return true, nil
	case AlreadyReserved:
		// Another record for this attendee is in flight; leave this one
		// pending until the holder settles.
		return false, nil
	}

	if err := w.queue.MarkSyncing(ctx, record.ID); err != nil {
		// Someone else already moved the record; drop the reservation.
		w.index.Release(key, record.ID)
		return false, fmt.Errorf("mark record %s syncing: %w", record.ID, err)
	}

	if err := ctx.Err(); err != nil {
		w.abandon(ctx, record)
		return false, err
	}

	result, err := w.store.ConditionalWrite(ctx, remote.Key{
		EventID:    record.EventID,
		AttendeeID: record.AttendeeID,
	}, remote.WritePayload{
		DeviceID:        record.DeviceID,
		ClientTimestamp: record.ClientTimestamp,
	}, 0)

	switch {
	case err == nil:
		if err := w.resolver.Resolve(ctx, record, result); err != nil {
			return false, err
		}
		return true, nil

	case remote.IsPermanent(err):
		if err := w.resolver.RejectPermanent(ctx, record); err != nil {
			return false, err
		}
		return true, nil

	default:
		// Transient or ambiguous: the write may have landed. Read back
		// before deciding to retry, otherwise a redelivered write would
		// later collide with our own record.
		resolved, verr := w.resolver.VerifyAmbiguous(ctx, record)
		if resolved {
			return true, verr
		}
		return false, w.reschedule(ctx, record, err)
	}
}

// reschedule returns a record to Pending with a backoff delay and frees
// its reservation so a later pass (or another record for the same key) can
// proceed.
func (w *Worker) reschedule(ctx context.Context, record QueueRecord, cause error) error {
	delay := w.cfg.Backoff.Delay(record.AttemptCount)
	next := w.now().Add(delay)

	serviceLogger(ctx, w.logger, "sync_worker", "reschedule",
		"checkin_id", record.ID).
		WarnContext(ctx, "transient failure, backing off",
			"attempt", record.AttemptCount+1,
			"retry_in", delay.String(),
			"error", cause.Error())

	if err := w.queue.Reschedule(ctx, record.ID, next, cause.Error()); err != nil {
		return fmt.Errorf("reschedule record %s: %w", record.ID, err)
	}
	w.index.Release(record.Key(), record.ID)
	return nil
}

// abandon undoes a claim taken right before cancellation so the record is
// retried cleanly on the next pass. A fresh context is used because the
// caller's one is already done.
func (w *Worker) abandon(ctx context.Context, record QueueRecord) {
	logger := serviceLogger(ctx, w.logger, "sync_worker", "abandon", "checkin_id", record.ID)

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.ReleaseSyncing(releaseCtx, record.ID); err != nil {
		logger.ErrorContext(ctx, "failed to release claimed record", "error", err)
	}
	w.index.Release(record.Key(), record.ID)
}

// StaleWarnings lists records that have waited longer than StaleThreshold
// without reaching a terminal status.
func (w *Worker) StaleWarnings(ctx context.Context) ([]StaleWarning, error) {
	cutoff := w.now().Add(-w.cfg.StaleThreshold)
	records, err := w.queue.ListStale(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale records: %w", err)
	}

	warnings := make([]StaleWarning, 0, len(records))
	for _, record := range records {
		warnings = append(warnings, StaleWarning{
			RecordID:   record.ID,
			Key:        record.Key(),
			EnqueuedAt: record.EnqueuedAt,
			Attempts:   record.AttemptCount,
			LastError:  record.LastError,
		})
	}
	return warnings, nil
}

func (w *Worker) purge(ctx context.Context, logger *slog.Logger) {
	cutoff := w.now().Add(-w.cfg.Retention)
	purged, err := w.queue.PurgeExpired(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logger.ErrorContext(ctx, "purge failed", "error", err)
		}
		return
	}
	if purged > 0 {
		logger.InfoContext(ctx, "purged expired terminal records", "count", purged)
	}
}
