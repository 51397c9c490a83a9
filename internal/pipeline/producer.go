// Package pipeline implements the offline-tolerant mutation pipeline: the
// producer wraps every state-changing call so a failure durably queues the
// mutation instead of losing it, and the engine later drains the queue
// against the live backend.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/nollavik/watchsync/internal/api"
	"github.com/nollavik/watchsync/internal/store"
)

// Sender executes a mutation immediately. Satisfied by *api.Client.
type Sender interface {
	Send(ctx context.Context, m api.Mutation) ([]byte, error)
}

// OnlineChecker reports current connectivity. Satisfied by *netmon.Monitor.
type OnlineChecker interface {
	IsOnline() bool
}

// ChangeQueue is the durable queue surface the producer needs. Satisfied by
// *store.Store.
type ChangeQueue interface {
	Enqueue(ctx context.Context, change store.PendingChange) (int64, error)
}

// Outcome is the result of PerformOrQueue. Exactly one of the two shapes:
// Queued=false with the server's response body, or Queued=true with the
// generated queue id.
type Outcome struct {
	Queued   bool
	QueuedID int64
	Body     []byte
}

// Producer makes state-changing calls resilient to transient failure.
type Producer struct {
	sender Sender
	queue  ChangeQueue
	online OnlineChecker
	logger *slog.Logger
}

// NewProducer wires a producer. queue may be nil when the local store is
// unavailable — mutations then fail loudly instead of queueing.
func NewProducer(sender Sender, queue ChangeQueue, online OnlineChecker, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Producer{sender: sender, queue: queue, online: online, logger: logger}
}

// PerformOrQueue attempts the mutation immediately. While offline it skips
// the network attempt entirely and enqueues. If the attempt fails (non-2xx
// or transport error) it enqueues the serialized request and reports
// Queued=true instead of propagating the failure, so the caller can show a
// non-fatal "will sync later" notice. Headers and body were captured when
// the mutation was built; Authorization is never captured — replay
// re-derives it (see api.Client.Do).
func (p *Producer) PerformOrQueue(ctx context.Context, m api.Mutation) (Outcome, error) {
	if p.online != nil && !p.online.IsOnline() {
		p.logger.Debug("offline, queueing without attempt",
			slog.String("method", m.Method),
			slog.String("path", m.Path),
		)

		return p.enqueue(ctx, m, nil)
	}

	body, err := p.sender.Send(ctx, m)
	if err == nil {
		return Outcome{Body: body}, nil
	}

	p.logger.Warn("mutation failed, queueing for later sync",
		slog.String("method", m.Method),
		slog.String("path", m.Path),
		slog.String("error", err.Error()),
	)

	return p.enqueue(ctx, m, err)
}

// enqueue persists the mutation. If the store is unavailable the original
// failure (or a plain offline error) propagates — the app stays usable,
// just without offline support.
func (p *Producer) enqueue(ctx context.Context, m api.Mutation, cause error) (Outcome, error) {
	if p.queue == nil {
		if cause != nil {
			return Outcome{}, cause
		}

		return Outcome{}, errOfflineNoQueue
	}

	id, err := p.queue.Enqueue(ctx, store.PendingChange{
		Method:         m.Method,
		URL:            m.Path,
		Header:         m.Header,
		Body:           m.Body,
		IdempotencyKey: m.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		p.logger.Error("could not queue mutation", slog.String("error", err.Error()))

		if cause != nil {
			return Outcome{}, cause
		}

		return Outcome{}, err
	}

	return Outcome{Queued: true, QueuedID: id}, nil
}
