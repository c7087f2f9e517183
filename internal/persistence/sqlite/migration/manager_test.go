package migration

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.TempDir()+"/migration_test.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testMigrations() []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "create widgets",
			Statements: []string{
				`CREATE TABLE widgets (id TEXT PRIMARY KEY, name TEXT NOT NULL)`,
			},
		},
		{
			Version:     "002",
			Description: "index widgets by name",
			Statements: []string{
				`CREATE INDEX idx_widgets_name ON widgets(name)`,
			},
		},
	}
}

func TestManager_RunMigrations(t *testing.T) {
	t.Run("applies pending migrations in order", func(t *testing.T) {
		db := openTestDB(t)
		manager := NewManager(db, testMigrations(), nil)

		require.NoError(t, manager.RunMigrations(context.Background()))

		applied, err := manager.Applied(context.Background())
		require.NoError(t, err)
		require.Len(t, applied, 2)
		require.Equal(t, "001", applied[0].Version)
		require.Equal(t, "002", applied[1].Version)

		_, err = db.Exec(`INSERT INTO widgets (id, name) VALUES ('w1', 'first')`)
		require.NoError(t, err)
	})

	t.Run("is idempotent across repeated runs", func(t *testing.T) {
		db := openTestDB(t)
		manager := NewManager(db, testMigrations(), nil)

		require.NoError(t, manager.RunMigrations(context.Background()))
		require.NoError(t, manager.RunMigrations(context.Background()))

		pending, err := manager.Pending(context.Background())
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		db := openTestDB(t)
		dupes := append(testMigrations(), Migration{
			Version:    "001",
			Statements: []string{`SELECT 1`},
		})
		manager := NewManager(db, dupes, nil)

		err := manager.RunMigrations(context.Background())
		require.Error(t, err)
	})

	t.Run("rolls back a failing migration atomically", func(t *testing.T) {
		db := openTestDB(t)
		broken := []Migration{
			{
				Version: "001",
				Statements: []string{
					`CREATE TABLE widgets (id TEXT PRIMARY KEY)`,
					`THIS IS NOT SQL`,
				},
			},
		}
		manager := NewManager(db, broken, nil)

		err := manager.RunMigrations(context.Background())
		require.Error(t, err)

		// The failed version must not be recorded, and the partial table
		// must not exist.
		applied, err := manager.Applied(context.Background())
		require.NoError(t, err)
		require.Empty(t, applied)

		_, err = db.Exec(`INSERT INTO widgets (id) VALUES ('w1')`)
		require.Error(t, err)
	})
}
