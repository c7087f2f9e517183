package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/checkin-engine/internal/config"
	"github.com/example/checkin-engine/internal/logging"
	"github.com/example/checkin-engine/internal/persistence"
	"github.com/example/checkin-engine/internal/persistence/sqlite"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage the device's event registry",
	}
	cmd.AddCommand(newEventsAddCommand(opts))
	cmd.AddCommand(newEventsListCommand(opts))
	cmd.AddCommand(newEventsRemoveCommand(opts))
	return cmd
}

// openStorage opens the local database without the rest of the engine, for
// commands that never touch the remote store.
func openStorage(ctx context.Context, opts *rootOptions) (*sqlite.Storage, config.Config, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}

	storage, err := sqlite.Open(cfg.SQLitePath, time.Now)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("open storage at %s: %w", cfg.SQLitePath, err)
	}

	logger := logging.New(os.Stderr, slog.LevelWarn, cfg.DeviceID)
	if err := storage.Migrate(ctx, logger); err != nil {
		storage.Close()
		return nil, config.Config{}, fmt.Errorf("run migrations: %w", err)
	}
	return storage, cfg, nil
}

func newEventsAddCommand(opts *rootOptions) *cobra.Command {
	var (
		id         string
		signingKey string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register an event on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, _, err := openStorage(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer storage.Close()

			if id == "" {
				id = uuid.NewString()
			}

			var key []byte
			if signingKey != "" {
				key, err = hex.DecodeString(signingKey)
				if err != nil {
					return fmt.Errorf("signing key must be hex: %w", err)
				}
			} else {
				key = make([]byte, 32)
				if _, err := rand.Read(key); err != nil {
					return fmt.Errorf("generate signing key: %w", err)
				}
			}

			event := persistence.Event{ID: id, Name: args[0], SigningKey: key}
			if err := storage.Events().PutEvent(cmd.Context(), event); err != nil {
				return fmt.Errorf("store event: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "event %s registered\n", id)
			fmt.Fprintf(cmd.OutOrStdout(), "signing key: %s\n", hex.EncodeToString(key))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "event id (default: generated)")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "hex-encoded badge signing key (default: generated)")
	return cmd
}

func newEventsListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered events",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, cfg, err := openStorage(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer storage.Close()

			events, err := storage.Events().ListEvents(cmd.Context())
			if err != nil {
				return err
			}
			for _, event := range events {
				marker := " "
				if event.ID == cfg.ActiveEventID {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-36s %s\n", marker, event.ID, event.Name)
			}
			return nil
		},
	}
}

func newEventsRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <event-id>",
		Short: "Remove an event from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, _, err := openStorage(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer storage.Close()

			if err := storage.Events().DeleteEvent(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %s removed\n", args[0])
			return nil
		},
	}
}
