package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/checkin-engine/internal/persistence"
)

const queueColumns = `id, event_id, attendee_id, device_id, client_timestamp, status,
	attempt_count, next_attempt_at, last_error, reject_reason, enqueued_at, updated_at`

// QueueRepository implements persistence.QueueRepository on SQLite.
type QueueRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

// NewQueueRepository creates a queue repository. When now is nil the wall
// clock is used.
func NewQueueRepository(pool *ConnectionPool, now func() time.Time) *QueueRepository {
	if now == nil {
		now = time.Now
	}
	return &QueueRepository{pool: pool, now: now}
}

// Enqueue appends one fully-formed record. The insert runs in its own
// implicit transaction, so a crash leaves either no record or a complete
// Pending record, never a partial one.
func (r *QueueRepository) Enqueue(ctx context.Context, record persistence.QueueRecord) (persistence.QueueRecord, error) {
	if record.ID == "" || record.EventID == "" || record.AttendeeID == "" {
		return persistence.QueueRecord{}, persistence.ErrConstraintViolation
	}
	if record.Status == "" {
		record.Status = persistence.StatusPending
	}
	if !record.Status.Valid() {
		return persistence.QueueRecord{}, persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	record.EnqueuedAt = now
	record.UpdatedAt = now
	if record.NextAttemptAt.IsZero() {
		record.NextAttemptAt = now
	}

	query := `
		INSERT INTO checkin_queue (` + queueColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		record.ID,
		record.EventID,
		record.AttendeeID,
		record.DeviceID,
		formatTime(record.ClientTimestamp),
		string(record.Status),
		record.AttemptCount,
		formatTime(record.NextAttemptAt),
		nullableString(record.LastError),
		nullableString(record.RejectReason),
		formatTime(record.EnqueuedAt),
		formatTime(record.UpdatedAt),
	)
	if err != nil {
		return persistence.QueueRecord{}, mapSQLiteError(err)
	}

	return record, nil
}

// Get returns a record by id.
func (r *QueueRepository) Get(ctx context.Context, id string) (persistence.QueueRecord, error) {
	if id == "" {
		return persistence.QueueRecord{}, persistence.ErrNotFound
	}

	query := `SELECT ` + queueColumns + ` FROM checkin_queue WHERE id = ?`
	record, err := scanQueueRecord(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return persistence.QueueRecord{}, mapSQLiteError(err)
	}
	return record, nil
}

// PeekReady lists due Pending records ordered by next_attempt_at then
// insertion order. Each call reads current state; no snapshot is cached.
func (r *QueueRepository) PeekReady(ctx context.Context, now time.Time, limit int) ([]persistence.QueueRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + queueColumns + `
		FROM checkin_queue
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC, rowid ASC
		LIMIT ?
	`
	rows, err := r.pool.DB().QueryContext(ctx, query, string(persistence.StatusPending), formatTime(now), limit)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	return collectQueueRecords(rows)
}

// MarkSyncing moves a Pending record to Syncing. The status guard in the
// WHERE clause makes the transition a compare-and-swap.
func (r *QueueRepository) MarkSyncing(ctx context.Context, id string) error {
	return r.transition(ctx, id, persistence.StatusPending, persistence.StatusSyncing, nil, nil)
}

// ReleaseSyncing reverts a Syncing record to Pending.
func (r *QueueRepository) ReleaseSyncing(ctx context.Context, id string) error {
	return r.transition(ctx, id, persistence.StatusSyncing, persistence.StatusPending, nil, nil)
}

// ReleaseAllSyncing reverts every Syncing record to Pending. Run once at
// startup before the worker starts so no record stays stuck after a crash.
func (r *QueueRepository) ReleaseAllSyncing(ctx context.Context) (int64, error) {
	query := `UPDATE checkin_queue SET status = ?, updated_at = ? WHERE status = ?`
	result, err := r.pool.DB().ExecContext(ctx, query,
		string(persistence.StatusPending),
		formatTime(r.now()),
		string(persistence.StatusSyncing),
	)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return result.RowsAffected()
}

// MarkTerminal moves a record to Committed or Rejected. Accepted from
// Syncing (normal resolution) or Pending (duplicates settled locally
// without a remote attempt). Terminal records are immutable afterwards;
// duplicates create new records instead.
func (r *QueueRepository) MarkTerminal(ctx context.Context, id string, status persistence.CheckinStatus, reason string) error {
	if !status.Terminal() {
		return persistence.ErrInvalidTransition
	}

	query := `
		UPDATE checkin_queue
		SET status = ?, reject_reason = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	result, err := r.pool.DB().ExecContext(ctx, query,
		string(status),
		nullableString(reasonPtr),
		formatTime(r.now()),
		id,
		string(persistence.StatusPending),
		string(persistence.StatusSyncing),
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return r.checkTransition(ctx, result, id)
}

// Reschedule returns a record to Pending with a later attempt time and an
// incremented attempt counter. Accepted from either Pending (held-back
// duplicates) or Syncing (transient failures).
func (r *QueueRepository) Reschedule(ctx context.Context, id string, nextAttempt time.Time, lastError string) error {
	var lastErrPtr *string
	if lastError != "" {
		lastErrPtr = &lastError
	}

	query := `
		UPDATE checkin_queue
		SET status = ?, next_attempt_at = ?, attempt_count = attempt_count + 1,
			last_error = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`
	result, err := r.pool.DB().ExecContext(ctx, query,
		string(persistence.StatusPending),
		formatTime(nextAttempt),
		nullableString(lastErrPtr),
		formatTime(r.now()),
		id,
		string(persistence.StatusPending),
		string(persistence.StatusSyncing),
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return r.checkTransition(ctx, result, id)
}

// ListByStatus lists records in a status, insertion order.
func (r *QueueRepository) ListByStatus(ctx context.Context, status persistence.CheckinStatus) ([]persistence.QueueRecord, error) {
	query := `SELECT ` + queueColumns + ` FROM checkin_queue WHERE status = ? ORDER BY rowid ASC`
	rows, err := r.pool.DB().QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	return collectQueueRecords(rows)
}

// ListStale lists non-terminal records enqueued before the cutoff. These
// surface as StaleSync warnings to operators.
func (r *QueueRepository) ListStale(ctx context.Context, cutoff time.Time) ([]persistence.QueueRecord, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM checkin_queue
		WHERE status IN (?, ?) AND enqueued_at < ?
		ORDER BY enqueued_at ASC
	`
	rows, err := r.pool.DB().QueryContext(ctx, query,
		string(persistence.StatusPending),
		string(persistence.StatusSyncing),
		formatTime(cutoff),
	)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	return collectQueueRecords(rows)
}

// PurgeExpired deletes terminal records last updated before the cutoff so
// sync history stays auditable for a bounded window, not forever.
func (r *QueueRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM checkin_queue WHERE status IN (?, ?) AND updated_at < ?`
	result, err := r.pool.DB().ExecContext(ctx, query,
		string(persistence.StatusCommitted),
		string(persistence.StatusRejected),
		formatTime(cutoff),
	)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return result.RowsAffected()
}

func (r *QueueRepository) transition(ctx context.Context, id string, from, to persistence.CheckinStatus, reason, lastError *string) error {
	query := `
		UPDATE checkin_queue
		SET status = ?, reject_reason = COALESCE(?, reject_reason),
			last_error = COALESCE(?, last_error), updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.pool.DB().ExecContext(ctx, query,
		string(to),
		nullableString(reason),
		nullableString(lastError),
		formatTime(r.now()),
		id,
		string(from),
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	return r.checkTransition(ctx, result, id)
}

// checkTransition distinguishes "no such record" from "record exists but in
// another status" when a guarded update matched nothing.
func (r *QueueRepository) checkTransition(ctx context.Context, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.ErrNotFound
		}
		return err
	}
	return persistence.ErrInvalidTransition
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueRecord(row rowScanner) (persistence.QueueRecord, error) {
	var record persistence.QueueRecord
	var clientTS, nextAttempt, enqueuedAt, updatedAt int64
	var status string
	var lastError, rejectReason sql.NullString

	err := row.Scan(
		&record.ID,
		&record.EventID,
		&record.AttendeeID,
		&record.DeviceID,
		&clientTS,
		&status,
		&record.AttemptCount,
		&nextAttempt,
		&lastError,
		&rejectReason,
		&enqueuedAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.QueueRecord{}, err
	}

	record.ClientTimestamp = parseTime(clientTS)
	record.Status = persistence.CheckinStatus(status)
	record.NextAttemptAt = parseTime(nextAttempt)
	record.LastError = stringPtr(lastError)
	record.RejectReason = stringPtr(rejectReason)
	record.EnqueuedAt = parseTime(enqueuedAt)
	record.UpdatedAt = parseTime(updatedAt)
	return record, nil
}

func collectQueueRecords(rows *sql.Rows) ([]persistence.QueueRecord, error) {
	var records []persistence.QueueRecord
	for rows.Next() {
		record, err := scanQueueRecord(rows)
		if err != nil {
			return nil, mapSQLiteError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return records, nil
}
