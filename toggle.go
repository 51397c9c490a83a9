package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nollavik/watchsync/internal/api"
)

func newToggleCmd() *cobra.Command {
	var unwatched bool

	cmd := &cobra.Command{
		Use:   "toggle <movie|series> <id>",
		Short: "Mark an item watched (or unwatched with --unwatched)",
		Long: `Set an item's watched state. While offline, or if the request fails,
the change is queued and synced later.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, itemID, err := parseItemArgs(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a := newApp(ctx)
			defer a.Close()

			m, err := api.ToggleWatched(itemType, itemID, !unwatched)
			if err != nil {
				return err
			}

			outcome, err := a.producer.PerformOrQueue(ctx, m)
			if err != nil {
				return err
			}

			if outcome.Queued {
				statusf("Change queued — it will sync when the server is reachable.\n")
			} else {
				statusf("Done.\n")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&unwatched, "unwatched", false, "mark as unwatched instead")

	return cmd
}

// parseItemArgs validates the common <movie|series> <id> argument pair.
func parseItemArgs(args []string) (itemType, itemID string, err error) {
	itemType, itemID = args[0], args[1]

	if itemType != api.TypeMovie && itemType != api.TypeSeries {
		return "", "", fmt.Errorf("item type must be %q or %q, got %q", api.TypeMovie, api.TypeSeries, itemType)
	}

	if itemID == "" {
		return "", "", fmt.Errorf("item id must not be empty")
	}

	return itemType, itemID, nil
}
