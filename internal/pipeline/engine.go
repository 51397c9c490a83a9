package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nollavik/watchsync/internal/api"
	"github.com/nollavik/watchsync/internal/store"
)

// errOfflineNoQueue is returned when a mutation can neither be sent nor
// durably queued.
var errOfflineNoQueue = errors.New("pipeline: offline and local store unavailable")

// Replay rate limit for a drain pass. Keeps a long queue from hammering a
// backend that just came back.
const (
	drainRPS   = 10
	drainBurst = 3
)

// Replayer replays a serialized mutation. Satisfied by *api.Client.
type Replayer interface {
	DoMutation(ctx context.Context, m api.Mutation) ([]byte, error)
}

// WatchlistFetcher retrieves the full watchlist for the post-drain snapshot
// refresh. Satisfied by *api.Client.
type WatchlistFetcher interface {
	FetchWatchlist(ctx context.Context) (*api.Watchlist, error)
}

// PendingStore is the durable-store surface the engine needs. Satisfied by
// *store.Store.
type PendingStore interface {
	ListPending(ctx context.Context) ([]store.PendingChange, error)
	RemovePending(ctx context.Context, id int64) error
	MarkAttempt(ctx context.Context, id int64) error
	SaveSnapshot(ctx context.Context, data []byte) error
}

// Report summarizes one drain pass. Success means every record known at the
// start of the pass was settled.
type Report struct {
	Skipped   bool // offline, or another pass already running
	Replayed  int  // settled: confirmed success or terminally moot
	Failed    int  // left in the queue for the next pass
	Remaining int
	Success   bool
}

// Engine drains the pending-change queue against the live backend. SyncNow
// never returns an error: per-record failures are logged and left for the
// next trigger, because a partial sync must not prevent later retries.
type Engine struct {
	replayer Replayer
	fetcher  WatchlistFetcher
	pending  PendingStore
	online   OnlineChecker
	logger   *slog.Logger
	limiter  *rate.Limiter

	// drainMu makes SyncNow re-entrant-safe: a call while a pass is running
	// is a no-op. Overlap with another process's pass is tolerated instead —
	// removal is keyed and replays are id-addressed.
	drainMu sync.Mutex

	subMu       sync.Mutex
	subscribers []func(Report)
}

// NewEngine wires a sync engine.
func NewEngine(replayer Replayer, fetcher WatchlistFetcher, pending PendingStore, online OnlineChecker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		replayer: replayer,
		fetcher:  fetcher,
		pending:  pending,
		online:   online,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(drainRPS), drainBurst),
	}
}

// Subscribe registers a callback invoked after every completed drain pass
// (skipped passes do not notify).
func (e *Engine) Subscribe(fn func(Report)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	e.subscribers = append(e.subscribers, fn)
}

// SyncNow performs one drain pass: load all pending records, sort by enqueue
// timestamp ascending, replay each in order, remove settled records, leave
// failures in place and continue — one failed record does not block later,
// unrelated records.
func (e *Engine) SyncNow(ctx context.Context) Report {
	if !e.drainMu.TryLock() {
		e.logger.Debug("drain already running, skipping")
		return Report{Skipped: true}
	}
	defer e.drainMu.Unlock()

	if e.online != nil && !e.online.IsOnline() {
		e.logger.Debug("offline, skipping drain")
		return Report{Skipped: true}
	}

	changes, err := e.pending.ListPending(ctx)
	if err != nil {
		e.logger.Error("could not load pending changes", slog.String("error", err.Error()))
		return Report{Skipped: true}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].EnqueuedAt.Before(changes[j].EnqueuedAt)
	})

	var report Report

	for _, change := range changes {
		if err := e.limiter.Wait(ctx); err != nil {
			report.Failed += len(changes) - report.Replayed - report.Failed
			break
		}

		if e.replayOne(ctx, change) {
			report.Replayed++
		} else {
			report.Failed++
		}
	}

	report.Remaining = report.Failed
	report.Success = report.Failed == 0

	e.logger.Info("drain pass complete",
		slog.Int("replayed", report.Replayed),
		slog.Int("failed", report.Failed),
		slog.Bool("success", report.Success),
	)

	if report.Success && report.Replayed > 0 {
		e.refreshSnapshot(ctx)
	}

	e.notify(report)

	return report
}

// replayOne attempts a single record. Returns true when the record was
// settled (removed from the queue).
func (e *Engine) replayOne(ctx context.Context, change store.PendingChange) bool {
	if err := e.pending.MarkAttempt(ctx, change.ID); err != nil {
		e.logger.Debug("could not record attempt", slog.Int64("id", change.ID))
	}

	_, err := e.replayer.DoMutation(ctx, api.Mutation{
		Method: change.Method,
		Path:   change.URL,
		Header: change.Header,
		Body:   change.Body,
	})

	if err == nil {
		e.remove(ctx, change.ID)
		return true
	}

	// Not-found and conflict mean the operation is settled or moot — the
	// item was already deleted, or a duplicate replay already applied.
	// Keeping such records would retry them forever without effect.
	if c := api.Classify(err); c.Kind == api.KindData {
		e.logger.Info("pending change settled by server state",
			slog.Int64("id", change.ID),
			slog.String("method", change.Method),
			slog.String("url", change.URL),
			slog.String("reason", c.Message),
		)
		e.remove(ctx, change.ID)

		return true
	}

	e.logger.Warn("replay failed, leaving record for next pass",
		slog.Int64("id", change.ID),
		slog.String("method", change.Method),
		slog.String("url", change.URL),
		slog.Int("attempts", change.Attempts+1),
		slog.String("error", err.Error()),
	)

	return false
}

// remove deletes a settled record. Removing an id a concurrent pass already
// removed is a no-op by store contract.
func (e *Engine) remove(ctx context.Context, id int64) {
	if err := e.pending.RemovePending(ctx, id); err != nil {
		e.logger.Error("could not remove settled change",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}

// refreshSnapshot re-fetches the watchlist after a fully successful pass so
// the cached render source reflects the replayed mutations.
func (e *Engine) refreshSnapshot(ctx context.Context) {
	if e.fetcher == nil {
		return
	}

	wl, err := e.fetcher.FetchWatchlist(ctx)
	if err != nil {
		e.logger.Warn("post-drain watchlist refresh failed", slog.String("error", err.Error()))
		return
	}

	data, err := json.Marshal(wl)
	if err != nil {
		e.logger.Warn("could not encode watchlist snapshot", slog.String("error", err.Error()))
		return
	}

	if err := e.pending.SaveSnapshot(ctx, data); err != nil {
		e.logger.Warn("could not save watchlist snapshot", slog.String("error", err.Error()))
	}
}

func (e *Engine) notify(report Report) {
	e.subMu.Lock()
	subs := make([]func(Report), len(e.subscribers))
	copy(subs, e.subscribers)
	e.subMu.Unlock()

	for _, fn := range subs {
		fn(report)
	}
}
