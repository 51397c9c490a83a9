package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Runner is the background execution context that outlives any single CLI
// invocation. It drains the queue on a fixed interval, on connectivity
// restoration (wired by the daemon via Monitor.OnOnline → Trigger), and when
// the token file changes — fresh credentials may unblock records that were
// failing with permission errors.
type Runner struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
	triggers chan string
}

// DefaultDrainInterval is how often the daemon drains absent other triggers.
const DefaultDrainInterval = 5 * time.Minute

// NewRunner wires a background runner around an engine.
func NewRunner(engine *Engine, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		engine:   engine,
		interval: interval,
		logger:   logger,
		triggers: make(chan string, 1),
	}
}

// Trigger requests a drain pass outside the regular interval. Non-blocking:
// if a trigger is already queued the new one coalesces into it.
func (r *Runner) Trigger(reason string) {
	select {
	case r.triggers <- reason:
	default:
	}
}

// Run drains on the interval and on triggers until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.engine.SyncNow(ctx)
		case reason := <-r.triggers:
			r.logger.Debug("drain triggered", slog.String("reason", reason))
			r.engine.SyncNow(ctx)
		}
	}
}

// WatchTokenFile watches the token file's directory and triggers a drain
// when the file is written or renamed into place (token saves are atomic
// rename operations, so watching the file itself would lose the watch).
func (r *Runner) WatchTokenFile(ctx context.Context, dir, name string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	r.logger.Debug("watching token directory", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Name != name {
				continue
			}

			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Rename) {
				r.Trigger("token file changed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			r.logger.Warn("token watch error", slog.String("error", err.Error()))
		}
	}
}
