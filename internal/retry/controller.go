// Package retry implements the interactive retry path for operations the
// user is actively watching (copy/move, single or bulk). It is deliberately
// separate from the silent background queue: failures here surface
// immediately with a classification-driven message and a bounded manual
// retry affordance, and nothing is persisted.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nollavik/watchsync/internal/api"
)

// MaxAttempts is the retry cap. Attempt 1 waits 1s, attempt 2 waits 2s,
// attempt 3 waits 4s; no attempt 4 is offered.
const MaxAttempts = 3

const (
	baseDelay = 1000 * time.Millisecond
	maxDelay  = 4000 * time.Millisecond
)

// State names the controller's explicit state machine:
// Idle → Attempting → {Succeeded | AwaitingChoice | FailedTerminal}.
type State int

// Controller states.
const (
	Idle State = iota
	Attempting
	AwaitingChoice
	FailedTerminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attempting:
		return "attempting"
	case AwaitingChoice:
		return "awaiting-choice"
	case FailedTerminal:
		return "failed-terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind identifies the interactive operation being retried.
type Kind string

// Operation kinds.
const (
	KindCopy     Kind = "copy"
	KindMove     Kind = "move"
	KindBulkCopy Kind = "bulkCopy"
	KindBulkMove Kind = "bulkMove"
)

// Operation is the single live OperationDetails record: what to run plus
// enough parameters to describe it to the user. Do is re-invoked verbatim on
// each manual retry (the SkipDuplicateCheck decision is baked in by then).
type Operation struct {
	Kind       Kind
	ItemID     string
	ItemType   string
	SourceList string
	TargetList string
	Do         func(ctx context.Context) error
}

// ErrNotAwaitingRetry is returned by Retry when there is no failed operation
// waiting for a user choice.
var ErrNotAwaitingRetry = errors.New("retry: no operation awaiting retry")

// Controller owns the retry state for at most one in-flight interactive
// operation. It is replaced or cleared on terminal success, failure, or
// dismissal; starting a new Attempt discards the previous state.
type Controller struct {
	logger *slog.Logger

	// sleepFunc waits between retries. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    State
	op       *Operation
	attempts int // manual retries performed so far
	lastErr  api.Classification
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithSleepFunc replaces the backoff wait between manual retries. Tests of
// packages built on the controller inject a no-op or recording func so they
// do not wait the real delays.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		c.sleepFunc = fn
	}
}

// NewController creates an idle controller.
func NewController(logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{logger: logger, sleepFunc: sleep}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Attempt runs the operation. Any previous operation state is discarded.
// On success the controller returns to Idle and returns nil. On a
// recoverable failure with retries remaining it enters AwaitingChoice and
// returns the error so the caller can present the retry affordance. On a
// non-recoverable failure it is terminal immediately.
func (c *Controller) Attempt(ctx context.Context, op *Operation) error {
	c.mu.Lock()
	c.state = Attempting
	c.op = op
	c.attempts = 0
	c.lastErr = api.Classification{}
	c.mu.Unlock()

	return c.run(ctx)
}

// Retry re-attempts the current failed operation after the backoff delay:
// min(1000·2^(attempts-1), 4000) milliseconds for the attempt it is about
// to make. Returns ErrNotAwaitingRetry unless the controller is in
// AwaitingChoice.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()

	if c.state != AwaitingChoice || c.op == nil {
		c.mu.Unlock()
		return ErrNotAwaitingRetry
	}

	c.attempts++
	attempt := c.attempts
	c.state = Attempting
	c.mu.Unlock()

	delay := Delay(attempt)

	c.logger.Info("retrying operation",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
	)

	if err := c.sleepFunc(ctx, delay); err != nil {
		c.reset()
		return err
	}

	return c.run(ctx)
}

// Dismiss clears the live operation and counter. The user walked away.
func (c *Controller) Dismiss() {
	c.reset()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// RemainingAttempts reports how many manual retries are still allowed.
func (c *Controller) RemainingAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return MaxAttempts - c.attempts
}

// LastClassification returns the classification of the most recent failure.
func (c *Controller) LastClassification() api.Classification {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastErr
}

// Delay returns the exact backoff before the given manual retry attempt
// (1-based): 1000ms, 2000ms, 4000ms.
func Delay(attempt int) time.Duration {
	d := baseDelay << (attempt - 1)
	if d > maxDelay {
		d = maxDelay
	}

	return d
}

// run executes the live operation and applies the state transition rules.
func (c *Controller) run(ctx context.Context) error {
	c.mu.Lock()
	op := c.op
	attempts := c.attempts
	c.mu.Unlock()

	err := op.Do(ctx)
	if err == nil {
		c.logger.Info("operation succeeded", slog.String("kind", string(op.Kind)))
		c.reset()

		return nil
	}

	class := api.Classify(err)

	c.mu.Lock()
	c.lastErr = class

	if class.Recoverable && attempts < MaxAttempts {
		c.state = AwaitingChoice
		c.mu.Unlock()

		c.logger.Warn("operation failed, retry available",
			slog.String("kind", string(op.Kind)),
			slog.String("classification", string(class.Kind)),
			slog.Int("remaining", MaxAttempts-attempts),
		)

		return err
	}

	c.state = FailedTerminal
	c.op = nil
	c.attempts = 0
	c.mu.Unlock()

	if !class.Recoverable {
		c.logger.Error("operation failed terminally",
			slog.String("kind", string(op.Kind)),
			slog.String("classification", string(class.Kind)),
		)

		return err
	}

	return fmt.Errorf("failed after %d attempts: %s: %w", MaxAttempts, class.Message, err)
}

func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Idle
	c.op = nil
	c.attempts = 0
}

// sleep waits for d or until ctx is canceled. Default sleepFunc.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
