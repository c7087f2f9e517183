package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/checkin-engine/internal/persistence"
)

func TestEventRepository(t *testing.T) {
	storage := openTestStorage(t, func() time.Time { return testEpoch })
	ctx := context.Background()
	events := storage.Events()

	t.Run("round trips an event", func(t *testing.T) {
		err := events.PutEvent(ctx, persistence.Event{
			ID:         "evt-1",
			Name:       "Spring Gala",
			SigningKey: []byte("gala-signing-key"),
		})
		require.NoError(t, err)

		stored, err := events.GetEvent(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, "Spring Gala", stored.Name)
		assert.Equal(t, []byte("gala-signing-key"), stored.SigningKey)
		assert.Equal(t, testEpoch, stored.CreatedAt)
	})

	t.Run("put preserves created_at on replace", func(t *testing.T) {
		err := events.PutEvent(ctx, persistence.Event{
			ID:         "evt-1",
			Name:       "Spring Gala (renamed)",
			SigningKey: []byte("rotated-key"),
		})
		require.NoError(t, err)

		stored, err := events.GetEvent(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, "Spring Gala (renamed)", stored.Name)
		assert.Equal(t, testEpoch, stored.CreatedAt)
	})

	t.Run("rejects events without a signing key", func(t *testing.T) {
		err := events.PutEvent(ctx, persistence.Event{ID: "evt-2"})
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		require.NoError(t, events.DeleteEvent(ctx, "evt-1"))
		_, err := events.GetEvent(ctx, "evt-1")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.ErrorIs(t, events.DeleteEvent(ctx, "evt-1"), persistence.ErrNotFound)
	})
}
