package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nollavik/watchsync/internal/store"
	"github.com/nollavik/watchsync/internal/tokenfile"
)

// statusJSON is the JSON-serializable status report.
type statusJSON struct {
	Account      string `json:"account,omitempty"`
	LoggedIn     bool   `json:"logged_in"`
	Online       bool   `json:"online"`
	QueueDepth   int    `json:"queue_depth"`
	SnapshotAge  string `json:"snapshot_age,omitempty"`
	SnapshotTime string `json:"snapshot_time,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, login, and pending-change status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.Close()

	var report statusJSON

	tok, account, err := tokenfile.Load(resolvedCfg.TokenPath)
	if err != nil {
		return err
	}

	report.LoggedIn = tok != nil
	report.Account = account
	report.Online = a.monitor.IsOnline()

	if a.store != nil {
		depth, err := a.store.CountPending(ctx)
		if err != nil {
			return err
		}

		report.QueueDepth = depth

		snap, err := a.store.LatestSnapshot(ctx)
		switch {
		case errors.Is(err, store.ErrNoSnapshot):
			// No snapshot yet — nothing cached.
		case err != nil:
			return err
		default:
			report.SnapshotTime = snap.CapturedAt.UTC().Format(time.RFC3339)
			report.SnapshotAge = time.Since(snap.CapturedAt).Round(time.Second).String()
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	if report.LoggedIn {
		fmt.Printf("Signed in%s\n", formatAccount(report.Account))
	} else {
		fmt.Println("Not signed in")
	}

	if report.Online {
		fmt.Println("Online")
	} else {
		fmt.Println("Offline")
	}

	fmt.Printf("Pending changes: %d\n", report.QueueDepth)

	if report.SnapshotTime != "" {
		fmt.Printf("Cached watchlist: %s old\n", report.SnapshotAge)
	} else {
		fmt.Println("Cached watchlist: none")
	}

	return nil
}

func formatAccount(account string) string {
	if account == "" {
		return ""
	}

	return " as " + account
}
