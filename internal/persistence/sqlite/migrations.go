package sqlite

import "github.com/example/checkin-engine/internal/persistence/sqlite/migration"

// Migrations is the ordered schema history for the local queue database.
func Migrations() []migration.Migration {
	return []migration.Migration{
		{
			Version:     "001",
			Description: "create check-in queue",
			Statements: []string{
				`CREATE TABLE checkin_queue (
					id TEXT PRIMARY KEY,
					event_id TEXT NOT NULL,
					attendee_id TEXT NOT NULL,
					device_id TEXT NOT NULL,
					client_timestamp INTEGER NOT NULL,
					status TEXT NOT NULL CHECK (status IN ('pending', 'syncing', 'committed', 'rejected')),
					attempt_count INTEGER NOT NULL DEFAULT 0,
					next_attempt_at INTEGER NOT NULL,
					last_error TEXT,
					reject_reason TEXT,
					enqueued_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_checkin_queue_ready ON checkin_queue(status, next_attempt_at)`,
				`CREATE INDEX idx_checkin_queue_key ON checkin_queue(event_id, attendee_id)`,
			},
		},
		{
			Version:     "002",
			Description: "create event registry",
			Statements: []string{
				`CREATE TABLE events (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					signing_key TEXT NOT NULL,
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,
			},
		},
	}
}
