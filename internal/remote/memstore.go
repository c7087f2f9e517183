package remote

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and the dry-run sync mode.
// It honors the same conditional-write contract as a real backend and can
// inject faults, including the ambiguous "write applied but response lost"
// case the resolver must handle.
type MemStore struct {
	mu      sync.Mutex
	records map[Key]AttendanceRecord
	now     func() time.Time

	nextErr          error
	nextReadErr      error
	ambiguousNextErr error
	writes           int
	reads            int
}

// NewMemStore creates an empty in-memory store. When now is nil the wall
// clock supplies server timestamps.
func NewMemStore(now func() time.Time) *MemStore {
	if now == nil {
		now = time.Now
	}
	return &MemStore{
		records: make(map[Key]AttendanceRecord),
		now:     now,
	}
}

// ConditionalWrite implements Store.
func (s *MemStore) ConditionalWrite(ctx context.Context, key Key, payload WritePayload, expectedRevision int64) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, Transient(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++

	if s.nextErr != nil {
		err := s.nextErr
		s.nextErr = nil
		return WriteResult{}, err
	}

	current, exists := s.records[key]
	currentRevision := int64(0)
	if exists {
		currentRevision = current.Revision
	}

	if currentRevision != expectedRevision {
		conflicting := current
		return WriteResult{
			Outcome:  WriteConflict,
			Revision: currentRevision,
			Current:  &conflicting,
		}, nil
	}

	record := AttendanceRecord{
		Key:         key,
		Revision:    currentRevision + 1,
		CommittedAt: s.now().UTC(),
		DeviceID:    payload.DeviceID,
	}
	s.records[key] = record

	if s.ambiguousNextErr != nil {
		err := s.ambiguousNextErr
		s.ambiguousNextErr = nil
		return WriteResult{}, err
	}

	return WriteResult{Outcome: WriteCommitted, Revision: record.Revision}, nil
}

// ReadCurrent implements Store.
func (s *MemStore) ReadCurrent(ctx context.Context, key Key) (AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return AttendanceRecord{}, Transient(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++

	if s.nextReadErr != nil {
		err := s.nextReadErr
		s.nextReadErr = nil
		return AttendanceRecord{}, err
	}

	record, ok := s.records[key]
	if !ok {
		return AttendanceRecord{}, ErrNotFound
	}
	return record, nil
}

// FailNext makes the next write fail with err before applying anything.
func (s *MemStore) FailNext(err error) {
	s.mu.Lock()
	s.nextErr = err
	s.mu.Unlock()
}

// FailNextRead makes the next read fail with err.
func (s *MemStore) FailNextRead(err error) {
	s.mu.Lock()
	s.nextReadErr = err
	s.mu.Unlock()
}

// AmbiguousNext makes the next write apply its effect but still return err,
// simulating an acknowledgement lost on the wire.
func (s *MemStore) AmbiguousNext(err error) {
	s.mu.Lock()
	s.ambiguousNextErr = err
	s.mu.Unlock()
}

// Seed installs a record directly, bypassing the write path.
func (s *MemStore) Seed(record AttendanceRecord) {
	s.mu.Lock()
	s.records[record.Key] = record
	s.mu.Unlock()
}

// WriteCount reports how many conditional writes were attempted.
func (s *MemStore) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ReadCount reports how many reads were attempted.
func (s *MemStore) ReadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Snapshot returns a copy of all stored records.
func (s *MemStore) Snapshot() []AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]AttendanceRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	return records
}
