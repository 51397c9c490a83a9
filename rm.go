package main

import (
	"github.com/spf13/cobra"

	"github.com/nollavik/watchsync/internal/api"
)

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <movie|series> <id>",
		Short: "Remove an item from the watchlist",
		Long: `Delete an item. While offline, or if the request fails, the deletion
is queued and synced later. Deletions are id-addressed, so a replayed delete
is harmless.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, itemID, err := parseItemArgs(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a := newApp(ctx)
			defer a.Close()

			m, err := api.DeleteItem(itemType, itemID)
			if err != nil {
				return err
			}

			outcome, err := a.producer.PerformOrQueue(ctx, m)
			if err != nil {
				return err
			}

			if outcome.Queued {
				statusf("Deletion queued — it will sync when the server is reachable.\n")
			} else {
				statusf("Deleted.\n")
			}

			return nil
		},
	}
}
