package testfixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/checkin-engine/internal/checkin"
)

// MemoryQueue is an in-memory checkin.Queue with the same transition guards
// as the sqlite-backed repository, so engine tests exercise the real state
// machine without a database file.
type MemoryQueue struct {
	mu      sync.Mutex
	records map[string]*checkin.QueueRecord
	order   []string
	now     func() time.Time
}

// NewMemoryQueue creates an empty queue. The now function stamps enqueue
// and update times; nil means time.Now.
func NewMemoryQueue(now func() time.Time) *MemoryQueue {
	if now == nil {
		now = time.Now
	}
	return &MemoryQueue{
		records: make(map[string]*checkin.QueueRecord),
		now:     now,
	}
}

// Enqueue appends a record in Pending status.
func (q *MemoryQueue) Enqueue(_ context.Context, record checkin.QueueRecord) (checkin.QueueRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.records[record.ID]; ok {
		return checkin.QueueRecord{}, fmt.Errorf("record %s already enqueued", record.ID)
	}

	now := q.now()
	record.Status = checkin.StatusPending
	record.EnqueuedAt = now
	record.UpdatedAt = now
	if record.NextAttemptAt.IsZero() {
		record.NextAttemptAt = now
	}

	stored := record
	q.records[record.ID] = &stored
	q.order = append(q.order, record.ID)
	return stored, nil
}

// Get returns a record copy by id.
func (q *MemoryQueue) Get(_ context.Context, id string) (checkin.QueueRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	record, ok := q.records[id]
	if !ok {
		return checkin.QueueRecord{}, checkin.ErrNotFound
	}
	return *record, nil
}

// PeekReady returns Pending records due at or before now, ordered by next
// attempt time then enqueue order.
func (q *MemoryQueue) PeekReady(_ context.Context, now time.Time, limit int) ([]checkin.QueueRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []checkin.QueueRecord
	for _, id := range q.order {
		record := q.records[id]
		if record.Status == checkin.StatusPending && !record.NextAttemptAt.After(now) {
			ready = append(ready, *record)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].NextAttemptAt.Before(ready[j].NextAttemptAt)
	})
	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}
	return ready, nil
}

// MarkSyncing moves a Pending record to Syncing.
func (q *MemoryQueue) MarkSyncing(_ context.Context, id string) error {
	return q.transition(id, checkin.StatusSyncing, "", checkin.StatusPending)
}

// ReleaseSyncing reverts a Syncing record to Pending.
func (q *MemoryQueue) ReleaseSyncing(_ context.Context, id string) error {
	return q.transition(id, checkin.StatusPending, "", checkin.StatusSyncing)
}

// ReleaseAllSyncing reverts every Syncing record to Pending.
func (q *MemoryQueue) ReleaseAllSyncing(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var released int64
	for _, record := range q.records {
		if record.Status == checkin.StatusSyncing {
			record.Status = checkin.StatusPending
			record.UpdatedAt = q.now()
			released++
		}
	}
	return released, nil
}

// MarkTerminal moves a Pending or Syncing record to a terminal status.
func (q *MemoryQueue) MarkTerminal(_ context.Context, id string, status checkin.Status, reason string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	return q.transition(id, status, reason, checkin.StatusPending, checkin.StatusSyncing)
}

// Reschedule returns a record to Pending with a later attempt time and an
// incremented attempt counter.
func (q *MemoryQueue) Reschedule(_ context.Context, id string, nextAttempt time.Time, lastError string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	record, ok := q.records[id]
	if !ok {
		return checkin.ErrNotFound
	}
	if record.Status != checkin.StatusPending && record.Status != checkin.StatusSyncing {
		return fmt.Errorf("cannot reschedule record %s from status %q", id, record.Status)
	}
	record.Status = checkin.StatusPending
	record.NextAttemptAt = nextAttempt
	record.AttemptCount++
	record.LastError = lastError
	record.UpdatedAt = q.now()
	return nil
}

// ListByStatus lists records in a status, enqueue order.
func (q *MemoryQueue) ListByStatus(_ context.Context, status checkin.Status) ([]checkin.QueueRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []checkin.QueueRecord
	for _, id := range q.order {
		if record := q.records[id]; record.Status == status {
			out = append(out, *record)
		}
	}
	return out, nil
}

// ListStale lists non-terminal records enqueued before the cutoff.
func (q *MemoryQueue) ListStale(_ context.Context, cutoff time.Time) ([]checkin.QueueRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []checkin.QueueRecord
	for _, id := range q.order {
		record := q.records[id]
		if !record.Status.Terminal() && record.EnqueuedAt.Before(cutoff) {
			out = append(out, *record)
		}
	}
	return out, nil
}

// PurgeExpired deletes terminal records last updated before the cutoff.
func (q *MemoryQueue) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var purged int64
	kept := q.order[:0]
	for _, id := range q.order {
		record := q.records[id]
		if record.Status.Terminal() && record.UpdatedAt.Before(cutoff) {
			delete(q.records, id)
			purged++
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
	return purged, nil
}

func (q *MemoryQueue) transition(id string, to checkin.Status, reason string, from ...checkin.Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	record, ok := q.records[id]
	if !ok {
		return checkin.ErrNotFound
	}
	allowed := false
	for _, status := range from {
		if record.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("cannot move record %s from %q to %q", id, record.Status, to)
	}
	record.Status = to
	if reason != "" {
		record.RejectReason = reason
	}
	record.UpdatedAt = q.now()
	return nil
}
