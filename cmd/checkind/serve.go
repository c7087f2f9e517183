package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/checkin-engine/internal/config"
	"github.com/example/checkin-engine/internal/httpapi"
)

const shutdownGrace = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the check-in daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = a.worker.Run(ctx)
	}()

	router := httpapi.NewRouter(httpapi.Handlers{
		Scans: httpapi.NewScanHandler(a.ingestor, logger),
		Queue: httpapi.NewQueueHandler(a.queue, logger),
		Sync:  httpapi.NewSyncHandler(a.worker, a.monitor, logger),
	}, logger)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr())
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	select {
	case <-workerDone:
	case <-time.After(shutdownGrace):
		logger.Warn("sync worker did not stop within the grace period")
	}

	logger.Info("checkind stopped")
	return nil
}
