package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nollavik/watchsync/internal/notify"
	"github.com/nollavik/watchsync/internal/pipeline"
)

// notifyShutdownTimeout bounds the notification server's drain on exit.
const notifyShutdownTimeout = 5 * time.Second

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the background sync daemon",
		Long: `Run the long-lived background context: probes connectivity, drains the
pending-change queue on reconnect and on an interval, picks up token
rotations, and pushes SYNC_COMPLETE notifications to attached pages over a
local websocket endpoint.`,
		RunE: runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx)
	defer a.Close()

	if a.engine == nil {
		return errors.New("local store unavailable, daemon cannot run")
	}

	hub := notify.NewHub(a.logger)
	runner := pipeline.NewRunner(a.engine, resolvedCfg.DrainInterval, a.logger)

	// Connectivity restored → drain. The monitor only invokes the hook; the
	// engine does the work.
	a.monitor.OnOnline(func() { runner.Trigger("connectivity restored") })

	// Every completed pass → notify attached pages so they re-render.
	a.engine.Subscribe(func(report pipeline.Report) {
		hub.BroadcastSyncComplete(report.Success, report.Replayed, report.Failed)
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.monitor.Run(ctx) })
	g.Go(func() error { return runner.Run(ctx) })
	g.Go(func() error {
		return runner.WatchTokenFile(ctx, filepath.Dir(resolvedCfg.TokenPath), resolvedCfg.TokenPath)
	})
	g.Go(func() error { return serveNotifications(ctx, resolvedCfg.NotifyListen, hub, a) })

	statusf("Daemon running (notifications on ws://%s/events).\n", resolvedCfg.NotifyListen)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// serveNotifications runs the local websocket endpoint pages attach to.
func serveNotifications(ctx context.Context, addr string, hub *notify.Hub, a *app) error {
	mux := http.NewServeMux()
	mux.Handle("/events", hub)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), notifyShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("notification server shutdown", "error", err.Error())
		}

		return ctx.Err()
	}
}
