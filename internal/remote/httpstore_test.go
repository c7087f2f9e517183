package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *HTTPStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := NewHTTPStore(server.URL+"/", WithHTTPClient(server.Client()), WithCallTimeout(2*time.Second))
	require.NoError(t, err)
	return store
}

func TestHTTPStore_ConditionalWrite(t *testing.T) {
	key := Key{EventID: "evt-1", AttendeeID: "att-1"}
	payload := WritePayload{DeviceID: "device-1", ClientTimestamp: time.Now()}

	t.Run("committed response carries the new revision", func(t *testing.T) {
		store := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/attendance/evt-1/att-1", r.URL.Path)
			assert.Equal(t, "0", r.Header.Get("If-Match"))

			var req writeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "device-1", req.DeviceID)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(attendanceDocument{Revision: 1, CommittedAt: time.Now().UTC(), DeviceID: req.DeviceID})
		})

		result, err := store.ConditionalWrite(context.Background(), key, payload, 0)
		require.NoError(t, err)
		assert.Equal(t, WriteCommitted, result.Outcome)
		assert.EqualValues(t, 1, result.Revision)
	})

	t.Run("precondition failure maps to conflict", func(t *testing.T) {
		store := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPreconditionFailed)
			json.NewEncoder(w).Encode(attendanceDocument{Revision: 4, CommittedAt: time.Now().UTC(), DeviceID: "device-2"})
		})

		result, err := store.ConditionalWrite(context.Background(), key, payload, 0)
		require.NoError(t, err)
		assert.Equal(t, WriteConflict, result.Outcome)
		assert.EqualValues(t, 4, result.Revision)
		require.NotNil(t, result.Current)
		assert.Equal(t, "device-2", result.Current.DeviceID)
	})

	t.Run("server errors classify transient", func(t *testing.T) {
		store := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := store.ConditionalWrite(context.Background(), key, payload, 0)
		assert.True(t, IsTransient(err), "expected transient, got %v", err)
	})

	t.Run("validation rejections classify permanent", func(t *testing.T) {
		store := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		})

		_, err := store.ConditionalWrite(context.Background(), key, payload, 0)
		assert.True(t, IsPermanent(err), "expected permanent, got %v", err)
	})

	t.Run("timeouts classify transient", func(t *testing.T) {
		store := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		})
		slow, err := NewHTTPStore(store.baseURL.String(), WithCallTimeout(20*time.Millisecond))
		require.NoError(t, err)

		_, err = slow.ConditionalWrite(context.Background(), key, payload, 0)
		assert.True(t, IsTransient(err), "expected transient, got %v", err)
	})
}

func TestHTTPStore_ReadCurrent(t *testing.T) {
	key := Key{EventID: "evt-1", AttendeeID: "att-1"}

	t.Run("returns the stored document", func(t *testing.T) {
		committedAt := time.Date(2025, time.June, 7, 12, 0, 0, 0, time.UTC)
		store := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			json.NewEncoder(w).Encode(attendanceDocument{Revision: 2, CommittedAt: committedAt, DeviceID: "device-2"})
		})

		record, err := store.ReadCurrent(context.Background(), key)
		require.NoError(t, err)
		assert.EqualValues(t, 2, record.Revision)
		assert.Equal(t, "device-2", record.DeviceID)
		assert.True(t, record.CommittedAt.Equal(committedAt))
		assert.Equal(t, key, record.Key)
	})

	t.Run("maps 404 to ErrNotFound", func(t *testing.T) {
		store := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})

		_, err := store.ReadCurrent(context.Background(), key)
		assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
	})
}

func TestHTTPStore_BaseURLWithPathPrefix(t *testing.T) {
	key := Key{EventID: "evt-1", AttendeeID: "att-1"}

	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
		json.NewEncoder(w).Encode(attendanceDocument{Revision: 1, CommittedAt: time.Now().UTC(), DeviceID: "device-1"})
	}))
	t.Cleanup(server.Close)

	// No trailing slash: the prefix must survive reference resolution.
	store, err := NewHTTPStore(server.URL+"/api/v1", WithHTTPClient(server.Client()))
	require.NoError(t, err)

	_, err = store.ReadCurrent(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/attendance/evt-1/att-1", got)
}

func TestHTTPStore_APIKey(t *testing.T) {
	key := Key{EventID: "evt-1", AttendeeID: "att-1"}

	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(attendanceDocument{Revision: 1, CommittedAt: time.Now().UTC(), DeviceID: "device-1"})
	}))
	t.Cleanup(server.Close)

	store, err := NewHTTPStore(server.URL+"/", WithHTTPClient(server.Client()), WithAPIKey("secret-token"))
	require.NoError(t, err)

	_, err = store.ReadCurrent(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", got)
}
