package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued offline changes now",
		Long: `Run one drain pass over the pending-change queue: every queued change
is replayed against the server in enqueue order. Changes that still fail
stay queued for the next pass.`,
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := newApp(ctx)
	defer a.Close()

	if a.engine == nil {
		return errors.New("local store unavailable, nothing to sync")
	}

	report := a.engine.SyncNow(ctx)

	switch {
	case report.Skipped:
		statusf("Sync skipped (offline or already running).\n")
	case report.Success && report.Replayed == 0:
		statusf("Nothing to sync.\n")
	case report.Success:
		statusf("Sync complete: %d change(s) replayed.\n", report.Replayed)
	default:
		statusf("Sync partial: %d replayed, %d still pending.\n", report.Replayed, report.Failed)
	}

	if !report.Success && !report.Skipped {
		return fmt.Errorf("%d change(s) could not be replayed", report.Failed)
	}

	return nil
}
