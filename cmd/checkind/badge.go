package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/checkin-engine/internal/persistence"
	"github.com/example/checkin-engine/internal/scancode"
)

func newBadgeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "badge <event-id> <attendee-id>",
		Short: "Generate a signed badge code for an attendee",
		Long: "badge prints the scannable payload for one attendee of a registered\n" +
			"event, signed with the event's key. Feed it to a QR encoder to produce\n" +
			"the printed badge.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, _, err := openStorage(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer storage.Close()

			event, err := storage.Events().GetEvent(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, persistence.ErrNotFound) {
					return fmt.Errorf("event %q is not registered on this device", args[0])
				}
				return err
			}

			code, err := scancode.Encode(event.SigningKey, event.ID, args[1])
			if err != nil {
				return fmt.Errorf("encode badge: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
}
