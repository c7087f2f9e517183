package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/checkin-engine/internal/checkin"
	"github.com/example/checkin-engine/internal/persistence"
)

// queueAdapter exposes a persistence.QueueRepository as the domain-level
// checkin.Queue, translating record shapes and sentinel errors.
type queueAdapter struct {
	repo persistence.QueueRepository
}

func (a queueAdapter) Enqueue(ctx context.Context, record checkin.QueueRecord) (checkin.QueueRecord, error) {
	stored, err := a.repo.Enqueue(ctx, toStoredRecord(record))
	if err != nil {
		return checkin.QueueRecord{}, mapQueueError(err)
	}
	return toDomainRecord(stored), nil
}

func (a queueAdapter) Get(ctx context.Context, id string) (checkin.QueueRecord, error) {
	stored, err := a.repo.Get(ctx, id)
	if err != nil {
		return checkin.QueueRecord{}, mapQueueError(err)
	}
	return toDomainRecord(stored), nil
}

func (a queueAdapter) PeekReady(ctx context.Context, now time.Time, limit int) ([]checkin.QueueRecord, error) {
	stored, err := a.repo.PeekReady(ctx, now, limit)
	if err != nil {
		return nil, mapQueueError(err)
	}
	return toDomainRecords(stored), nil
}

func (a queueAdapter) MarkSyncing(ctx context.Context, id string) error {
	return mapQueueError(a.repo.MarkSyncing(ctx, id))
}

func (a queueAdapter) ReleaseSyncing(ctx context.Context, id string) error {
	return mapQueueError(a.repo.ReleaseSyncing(ctx, id))
}

func (a queueAdapter) ReleaseAllSyncing(ctx context.Context) (int64, error) {
	released, err := a.repo.ReleaseAllSyncing(ctx)
	return released, mapQueueError(err)
}

func (a queueAdapter) MarkTerminal(ctx context.Context, id string, status checkin.Status, reason string) error {
	return mapQueueError(a.repo.MarkTerminal(ctx, id, persistence.CheckinStatus(status), reason))
}

func (a queueAdapter) Reschedule(ctx context.Context, id string, nextAttempt time.Time, lastError string) error {
	return mapQueueError(a.repo.Reschedule(ctx, id, nextAttempt, lastError))
}

func (a queueAdapter) ListByStatus(ctx context.Context, status checkin.Status) ([]checkin.QueueRecord, error) {
	stored, err := a.repo.ListByStatus(ctx, persistence.CheckinStatus(status))
	if err != nil {
		return nil, mapQueueError(err)
	}
	return toDomainRecords(stored), nil
}

func (a queueAdapter) ListStale(ctx context.Context, cutoff time.Time) ([]checkin.QueueRecord, error) {
	stored, err := a.repo.ListStale(ctx, cutoff)
	if err != nil {
		return nil, mapQueueError(err)
	}
	return toDomainRecords(stored), nil
}

func (a queueAdapter) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	purged, err := a.repo.PurgeExpired(ctx, cutoff)
	return purged, mapQueueError(err)
}

// eventDirectory exposes a persistence.EventRepository as the domain-level
// checkin.EventDirectory.
type eventDirectory struct {
	repo persistence.EventRepository
}

func (d eventDirectory) GetEvent(ctx context.Context, id string) (checkin.Event, error) {
	event, err := d.repo.GetEvent(ctx, id)
	if err != nil {
		return checkin.Event{}, mapQueueError(err)
	}
	return checkin.Event{ID: event.ID, Name: event.Name, SigningKey: event.SigningKey}, nil
}

func mapQueueError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("%w: %v", checkin.ErrNotFound, err)
	}
	return err
}

func toStoredRecord(record checkin.QueueRecord) persistence.QueueRecord {
	stored := persistence.QueueRecord{
		ID:              record.ID,
		EventID:         record.EventID,
		AttendeeID:      record.AttendeeID,
		DeviceID:        record.DeviceID,
		ClientTimestamp: record.ClientTimestamp,
		Status:          persistence.CheckinStatus(record.Status),
		AttemptCount:    record.AttemptCount,
		NextAttemptAt:   record.NextAttemptAt,
		EnqueuedAt:      record.EnqueuedAt,
		UpdatedAt:       record.UpdatedAt,
	}
	if record.LastError != "" {
		lastError := record.LastError
		stored.LastError = &lastError
	}
	if record.RejectReason != "" {
		reason := record.RejectReason
		stored.RejectReason = &reason
	}
	return stored
}

func toDomainRecord(stored persistence.QueueRecord) checkin.QueueRecord {
	record := checkin.QueueRecord{
		CheckinEvent: checkin.CheckinEvent{
			ID:              stored.ID,
			EventID:         stored.EventID,
			AttendeeID:      stored.AttendeeID,
			DeviceID:        stored.DeviceID,
			ClientTimestamp: stored.ClientTimestamp,
			Status:          checkin.Status(stored.Status),
		},
		AttemptCount:  stored.AttemptCount,
		NextAttemptAt: stored.NextAttemptAt,
		EnqueuedAt:    stored.EnqueuedAt,
		UpdatedAt:     stored.UpdatedAt,
	}
	if stored.LastError != nil {
		record.LastError = *stored.LastError
	}
	if stored.RejectReason != nil {
		record.RejectReason = *stored.RejectReason
	}
	return record
}

func toDomainRecords(stored []persistence.QueueRecord) []checkin.QueueRecord {
	records := make([]checkin.QueueRecord, 0, len(stored))
	for _, s := range stored {
		records = append(records, toDomainRecord(s))
	}
	return records
}
