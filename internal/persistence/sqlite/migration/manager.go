package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
)

// Manager applies a set of embedded migrations in version order, skipping
// versions already recorded.
type Manager struct {
	executor   *Executor
	migrations []Migration
	logger     *slog.Logger
}

// NewManager builds a manager for the given database and migration set.
func NewManager(db *sql.DB, migrations []Migration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Version < ordered[j].Version
	})
	return &Manager{
		executor:   NewExecutor(db),
		migrations: ordered,
		logger:     logger,
	}
}

// RunMigrations applies every pending migration in order.
func (m *Manager) RunMigrations(ctx context.Context) error {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return err
	}

	if err := validateVersions(m.migrations); err != nil {
		return err
	}

	for _, mig := range m.migrations {
		applied, err := m.executor.IsVersionApplied(ctx, mig.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		m.logger.InfoContext(ctx, "applying migration", "version", mig.Version, "description", mig.Description)
		if err := m.executor.ExecuteMigration(ctx, mig); err != nil {
			return err
		}
	}

	return nil
}

// Pending returns the migrations not yet recorded in the database.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range m.migrations {
		applied, err := m.executor.IsVersionApplied(ctx, mig.Version)
		if err != nil {
			return nil, err
		}
		if !applied {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Applied returns the migrations recorded in the database.
func (m *Manager) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}
	return m.executor.AppliedVersions(ctx)
}

func validateVersions(migrations []Migration) error {
	seen := make(map[string]struct{}, len(migrations))
	for _, mig := range migrations {
		if mig.Version == "" {
			return NewError("", "validate", fmt.Errorf("migration with empty version"))
		}
		if _, ok := seen[mig.Version]; ok {
			return NewError(mig.Version, "validate", fmt.Errorf("duplicate migration version"))
		}
		seen[mig.Version] = struct{}{}
	}
	return nil
}
