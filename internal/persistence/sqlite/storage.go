package sqlite

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/checkin-engine/internal/persistence/sqlite/migration"
)

// Storage bundles the connection pool with the repositories backed by it.
type Storage struct {
	pool   *ConnectionPool
	queue  *QueueRepository
	events *EventRepository
}

// Open connects to the queue database at dsn. Pass now for tests that need
// a controllable clock; nil uses the wall clock.
func Open(dsn string, now func() time.Time) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:   pool,
		queue:  NewQueueRepository(pool, now),
		events: NewEventRepository(pool, now),
	}, nil
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	return migration.NewManager(s.pool.DB(), Migrations(), logger).RunMigrations(ctx)
}

// Queue returns the durable queue repository.
func (s *Storage) Queue() *QueueRepository {
	return s.queue
}

// Events returns the event registry repository.
func (s *Storage) Events() *EventRepository {
	return s.events
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.pool.Close()
}
