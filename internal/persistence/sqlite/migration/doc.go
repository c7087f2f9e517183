// Package migration applies versioned schema migrations to the local SQLite
// queue database. Migrations are embedded in the binary rather than scanned
// from disk: every device carries its own queue file and upgrades it in
// place during startup, before the sync worker or ingest path touch it.
package migration
