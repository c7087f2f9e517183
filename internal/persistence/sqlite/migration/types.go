package migration

import "time"

// Migration is a versioned set of SQL statements applied once per database.
// Migrations are embedded in the binary; the device owns its queue file and
// upgrades it in place on startup.
type Migration struct {
	Version     string
	Description string
	Statements  []string
}

// AppliedMigration records a migration that has been executed, as stored in
// the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
}
