package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nollavik/watchsync/internal/api"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the watchlist",
		Long: `Fetch and display the watchlist. When the server is unreachable, the
last cached snapshot is shown instead, with a notice.`,
		RunE: runShow,
	}
}

func runShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.Close()

	wl, cached, err := loadWatchlist(ctx, a)
	if err != nil {
		return err
	}

	if cached {
		statusf("Offline — showing cached watchlist.\n\n")
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(wl)
	}

	printWatchlist(wl)

	return nil
}

// loadWatchlist fetches the live watchlist, refreshing the snapshot on
// success. On fetch failure it falls back to the cached snapshot; cached is
// true in that case.
func loadWatchlist(ctx context.Context, a *app) (*api.Watchlist, bool, error) {
	wl, fetchErr := a.client.FetchWatchlist(ctx)
	if fetchErr == nil {
		if a.store != nil {
			if data, err := json.Marshal(wl); err == nil {
				if err := a.store.SaveSnapshot(ctx, data); err != nil {
					a.logger.Warn("could not cache watchlist", "error", err.Error())
				}
			}
		}

		return wl, false, nil
	}

	if a.store == nil {
		return nil, false, fetchErr
	}

	snap, err := a.store.LatestSnapshot(ctx)
	if err != nil {
		// No cache either — report the original fetch failure.
		return nil, false, fetchErr
	}

	var cached api.Watchlist
	if err := json.Unmarshal(snap.Data, &cached); err != nil {
		return nil, false, fmt.Errorf("decoding cached watchlist: %w", err)
	}

	return &cached, true, nil
}

func printWatchlist(wl *api.Watchlist) {
	if len(wl.Movies) > 0 {
		fmt.Println("Movies:")
		printItems(wl.Movies)
	}

	if len(wl.Series) > 0 {
		fmt.Println("Series:")
		printItems(wl.Series)
	}

	for _, list := range wl.Lists {
		fmt.Printf("List %q (%d items):\n", list.Name, len(list.Items))
		printItems(list.Items)
	}

	if len(wl.Movies) == 0 && len(wl.Series) == 0 && len(wl.Lists) == 0 {
		fmt.Println("Watchlist is empty.")
	}
}

func printItems(items []api.Item) {
	rows := make([][]string, len(items))
	for i, item := range items {
		year := ""
		if item.Year > 0 {
			year = fmt.Sprintf("%d", item.Year)
		}

		added := ""
		if !item.AddedAt.IsZero() {
			added = formatTime(item.AddedAt)
		}

		rows[i] = []string{item.ID, item.Title, year, watchedMark(item.Watched), added}
	}

	printTable(os.Stdout, []string{"ID", "TITLE", "YEAR", "WATCHED", "ADDED"}, rows)
	fmt.Println()
}
