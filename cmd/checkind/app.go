package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/checkin-engine/internal/checkin"
	"github.com/example/checkin-engine/internal/config"
	"github.com/example/checkin-engine/internal/logging"
	"github.com/example/checkin-engine/internal/persistence/sqlite"
	"github.com/example/checkin-engine/internal/remote"
)

// app bundles the wired engine for the commands that need a running
// instance.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	storage  *sqlite.Storage
	queue    checkin.Queue
	events   checkin.EventDirectory
	index    *checkin.DedupIndex
	store    remote.Store
	monitor  *checkin.Monitor
	ingestor *checkin.Ingestor
	worker   *checkin.Worker
}

// buildApp opens storage, runs migrations, recovers orphaned Syncing
// records, and rebuilds the dedup index. It is the single bootstrap path
// for serve and sync-once so both start from an identical state.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger := logging.New(os.Stderr, cfg.SlogLevel(), cfg.DeviceID)

	storage, err := sqlite.Open(cfg.SQLitePath, time.Now)
	if err != nil {
		return nil, fmt.Errorf("open storage at %s: %w", cfg.SQLitePath, err)
	}
	if err := storage.Migrate(ctx, logger); err != nil {
		storage.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	queue := queueAdapter{repo: storage.Queue()}
	events := eventDirectory{repo: storage.Events()}

	released, err := queue.ReleaseAllSyncing(ctx)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("recover in-flight records: %w", err)
	}
	if released > 0 {
		logger.InfoContext(ctx, "recovered records left syncing by a previous run", "count", released)
	}

	store, err := remote.NewHTTPStore(cfg.RemoteBaseURL,
		remote.WithCallTimeout(cfg.RemoteTimeout),
		remote.WithAPIKey(cfg.RemoteAPIKey),
	)
	if err != nil {
		storage.Close()
		return nil, err
	}

	index := checkin.NewDedupIndex()
	if err := index.Rebuild(ctx, queue, store); err != nil {
		storage.Close()
		return nil, fmt.Errorf("rebuild dedup index: %w", err)
	}

	monitor := checkin.NewMonitor(true)
	resolver := checkin.NewResolver(queue, index, store, logger)
	worker := checkin.NewWorker(queue, index, resolver, store, monitor, checkin.WorkerConfig{
		BatchSize:      cfg.BatchSize,
		PollInterval:   cfg.PollInterval,
		StaleThreshold: cfg.StaleThreshold,
		Retention:      cfg.Retention,
		Backoff:        checkin.NewBackoff(cfg.BackoffBase, cfg.BackoffCap),
	}, time.Now, logger)

	ingestor := checkin.NewIngestor(queue, events, cfg.DeviceID, time.Now, logger)
	if cfg.ActiveEventID != "" {
		ingestor.SetActiveEvent(cfg.ActiveEventID)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		storage:  storage,
		queue:    queue,
		events:   events,
		index:    index,
		store:    store,
		monitor:  monitor,
		ingestor: ingestor,
		worker:   worker,
	}, nil
}

func (a *app) close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}
