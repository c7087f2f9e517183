package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/example/checkin-engine/internal/persistence"
)

// EventRepository implements persistence.EventRepository on SQLite.
type EventRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

// NewEventRepository creates an event registry repository.
func NewEventRepository(pool *ConnectionPool, now func() time.Time) *EventRepository {
	if now == nil {
		now = time.Now
	}
	return &EventRepository{pool: pool, now: now}
}

// PutEvent inserts or replaces a registry entry, preserving created_at on
// replacement.
func (r *EventRepository) PutEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" || len(event.SigningKey) == 0 {
		return persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var createdAt int64
		err := tx.QueryRowContext(ctx, `SELECT created_at FROM events WHERE id = ?`, event.ID).Scan(&createdAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			createdAt = formatTime(now)
		case err != nil:
			return mapSQLiteError(err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (id, name, signing_key, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				signing_key = excluded.signing_key,
				updated_at = excluded.updated_at
		`,
			event.ID,
			event.Name,
			hex.EncodeToString(event.SigningKey),
			createdAt,
			formatTime(now),
		)
		if err != nil {
			return mapSQLiteError(err)
		}
		return nil
	})
}

// GetEvent returns a registry entry by id.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, signing_key, created_at, updated_at FROM events WHERE id = ?
	`, id)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, mapSQLiteError(err)
	}
	return event, nil
}

// ListEvents returns all registry entries ordered by creation time.
func (r *EventRepository) ListEvents(ctx context.Context) ([]persistence.Event, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, signing_key, created_at, updated_at
		FROM events ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, mapSQLiteError(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return events, nil
}

// DeleteEvent removes a registry entry.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return mapSQLiteError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var event persistence.Event
	var signingKey string
	var createdAt, updatedAt int64

	if err := row.Scan(&event.ID, &event.Name, &signingKey, &createdAt, &updatedAt); err != nil {
		return persistence.Event{}, err
	}

	key, err := hex.DecodeString(signingKey)
	if err != nil {
		return persistence.Event{}, fmt.Errorf("failed to decode signing key: %w", err)
	}
	event.SigningKey = key
	event.CreatedAt = parseTime(createdAt)
	event.UpdatedAt = parseTime(updatedAt)
	return event, nil
}
