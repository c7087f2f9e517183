package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/checkin-engine/internal/checkin"
)

func newSyncOnceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-once",
		Short: "Run a single sync pass and exit",
		Long: "sync-once drains every ready record from the durable queue toward the\n" +
			"remote store once, then prints a queue summary. Useful from cron or for\n" +
			"manual recovery after a long offline stretch.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.worker.RunOnce(ctx); err != nil {
				return fmt.Errorf("sync pass: %w", err)
			}

			for _, status := range []checkin.Status{
				checkin.StatusPending,
				checkin.StatusSyncing,
				checkin.StatusCommitted,
				checkin.StatusRejected,
			} {
				records, err := a.queue.ListByStatus(ctx, status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", status, len(records))
			}
			return nil
		},
	}
}
