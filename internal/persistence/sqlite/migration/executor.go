package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Executor applies individual migrations against a SQLite database and
// tracks them in the schema_migrations table.
type Executor struct {
	db *sql.DB
}

// NewExecutor creates an executor bound to the given database handle.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// InitializeVersionTable creates the schema_migrations table if needed.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			execution_time_ms INTEGER
		)
	`
	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return NewError("", "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs a single migration's statements within one
// transaction and records the version on success.
func (e *Executor) ExecuteMigration(ctx context.Context, m Migration) error {
	if len(m.Statements) == 0 {
		return NewError(m.Version, "validate", fmt.Errorf("migration has no statements"))
	}

	start := time.Now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewError(m.Version, "begin transaction", err)
	}

	for i, stmt := range m.Statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return NewError(m.Version, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	insertSQL := `INSERT INTO schema_migrations (version, applied_at, execution_time_ms) VALUES (?, ?, ?)`
	appliedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, insertSQL, m.Version, appliedAt, time.Since(start).Milliseconds()); err != nil {
		_ = tx.Rollback()
		return NewError(m.Version, "record migration", err)
	}

	if err := tx.Commit(); err != nil {
		return NewError(m.Version, "commit transaction", err)
	}
	return nil
}

// IsVersionApplied reports whether the version is already recorded.
func (e *Executor) IsVersionApplied(ctx context.Context, version string) (bool, error) {
	var exists int
	err := e.db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ? LIMIT 1`, version).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, NewError(version, "check version applied", err)
	}
	return true, nil
}

// AppliedVersions returns all recorded migrations ordered by version.
func (e *Executor) AppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT version, applied_at, execution_time_ms FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, NewError("", "list applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var record AppliedMigration
		var appliedAt string
		var executionMs int64
		if err := rows.Scan(&record.Version, &appliedAt, &executionMs); err != nil {
			return nil, NewError("", "scan applied version", err)
		}
		if record.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, NewError(record.Version, "parse applied_at", err)
		}
		record.ExecutionTime = time.Duration(executionMs) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewError("", "list applied versions", err)
	}
	return applied, nil
}
