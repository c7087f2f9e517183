package checkin

import (
	"context"
	"errors"
	"sync"

	"github.com/example/checkin-engine/internal/remote"
)

// ReservationOutcome reports the result of a TryReserve call.
type ReservationOutcome int

const (
	// Reserved means the candidate now holds the key and may sync.
	Reserved ReservationOutcome = iota
	// AlreadyReserved means another record holds the key; the candidate is
	// held back, not dropped.
	AlreadyReserved
	// AlreadyCommitted means the key has a committed check-in; the candidate
	// is a duplicate and never contacts the remote store.
	AlreadyCommitted
)

// Reservation is the outcome of a TryReserve call. HolderID identifies the
// record holding the key when the outcome is AlreadyReserved.
type Reservation struct {
	Outcome  ReservationOutcome
	HolderID string
}

type dedupEntry struct {
	holderID  string
	committed bool
}

// DedupIndex guards the invariant that at most one record per DedupKey is
// Syncing or Committed at any time. It is the only in-memory mutable state
// shared between the ingest path and the sync worker; every operation is an
// atomic read-modify-write under one mutex.
//
// The index is rebuilt at startup from the durable queue plus a remote
// read, so it is never a sole source of truth.
type DedupIndex struct {
	mu      sync.Mutex
	entries map[DedupKey]dedupEntry
}

// NewDedupIndex creates an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{entries: make(map[DedupKey]dedupEntry)}
}

// TryReserve attempts to claim key for candidateID. Reserving is idempotent
// for the current holder.
func (ix *DedupIndex) TryReserve(key DedupKey, candidateID string) Reservation {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entry, ok := ix.entries[key]
	if !ok {
		ix.entries[key] = dedupEntry{holderID: candidateID}
		return Reservation{Outcome: Reserved}
	}
	if entry.committed {
		return Reservation{Outcome: AlreadyCommitted}
	}
	if entry.holderID == candidateID {
		return Reservation{Outcome: Reserved}
	}
	return Reservation{Outcome: AlreadyReserved, HolderID: entry.holderID}
}

// Release frees key if candidateID holds it. Releasing a key held by a
// different record or already committed is a no-op.
func (ix *DedupIndex) Release(key DedupKey, candidateID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entry, ok := ix.entries[key]
	if !ok || entry.committed || entry.holderID != candidateID {
		return
	}
	delete(ix.entries, key)
}

// MarkCommitted records that key has a committed check-in, regardless of
// which device won. Subsequent reservations report AlreadyCommitted.
func (ix *DedupIndex) MarkCommitted(key DedupKey) {
	ix.mu.Lock()
	ix.entries[key] = dedupEntry{committed: true}
	ix.mu.Unlock()
}

// IsCommitted reports whether key has a committed check-in.
func (ix *DedupIndex) IsCommitted(key DedupKey) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.entries[key].committed
}

// Len reports the number of tracked keys.
func (ix *DedupIndex) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.entries)
}

// Rebuild repopulates the index from the durable queue and the remote
// store: Committed records mark their keys committed, Syncing records
// re-take their reservations, and each distinct Pending key is checked
// against the remote store so a check-in committed by another device while
// this one was offline is recognized without a write attempt.
//
// A remote record carrying this device's id means a write landed but its
// acknowledgement was lost before a crash. The oldest Pending record for
// that key is the one that produced it, so it settles as Committed here
// instead of being rejected as a duplicate of itself.
//
// A remote read failure during rebuild is not fatal: the key stays
// unreserved and the conditional write discovers the conflict later.
func (ix *DedupIndex) Rebuild(ctx context.Context, queue Queue, store remote.Store) error {
	committed, err := queue.ListByStatus(ctx, StatusCommitted)
	if err != nil {
		return err
	}
	for _, record := range committed {
		ix.MarkCommitted(record.Key())
	}

	syncing, err := queue.ListByStatus(ctx, StatusSyncing)
	if err != nil {
		return err
	}
	for _, record := range syncing {
		ix.TryReserve(record.Key(), record.ID)
	}

	if store == nil {
		return nil
	}

	pending, err := queue.ListByStatus(ctx, StatusPending)
	if err != nil {
		return err
	}
	seen := make(map[DedupKey]struct{}, len(pending))
	for _, record := range pending {
		key := record.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if ix.IsCommitted(key) {
			continue
		}

		current, err := store.ReadCurrent(ctx, remote.Key{EventID: key.EventID, AttendeeID: key.AttendeeID})
		switch {
		case err == nil:
			if current.DeviceID == record.DeviceID {
				if err := queue.MarkTerminal(ctx, record.ID, StatusCommitted, ""); err != nil {
					return err
				}
			}
			ix.MarkCommitted(key)
		case errors.Is(err, remote.ErrNotFound):
			// Key is still open remotely.
		default:
			// Offline or flaky; the conditional write will find out.
			continue
		}
	}

	return nil
}
