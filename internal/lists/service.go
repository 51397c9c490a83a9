// Package lists implements list-to-list copy and move with pre-flight
// duplicate resolution, bounded interactive retry, and a time-boxed undo for
// completed moves.
package lists

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nollavik/watchsync/internal/api"
	"github.com/nollavik/watchsync/internal/pipeline"
	"github.com/nollavik/watchsync/internal/retry"
)

// ErrCanceled is returned when the user cancels at the duplicate prompt.
var ErrCanceled = errors.New("lists: operation canceled")

// Choice is the user's answer at a duplicate-resolution prompt.
type Choice int

// Resolution choices. The copy prompt offers SkipDuplicates; the move prompt
// offers RemoveFromSource ("remove from source only, without re-adding to
// the target"). Cancel aborts with no network call.
const (
	ChoiceCancel Choice = iota
	ChoiceSkipDuplicates
	ChoiceRemoveFromSource
)

// Resolver presents the duplicate-resolution prompt. The CLI implements it
// interactively; tests script it.
type Resolver interface {
	// ResolveCopy is called when copying and duplicates of the listed items
	// already exist in the target list.
	ResolveCopy(duplicates []api.ItemRef, targetList string) Choice
	// ResolveMove is called when moving and the item already exists in the
	// target list.
	ResolveMove(duplicates []api.ItemRef, targetList string) Choice
}

// ItemLister fetches a list's current items. Satisfied by *api.Client.
type ItemLister interface {
	ListItems(ctx context.Context, listID string) ([]api.Item, error)
}

// Sender executes a mutation immediately. Satisfied by *api.Client.
type Sender interface {
	Send(ctx context.Context, m api.Mutation) ([]byte, error)
}

// Performer queues a mutation when it cannot be sent. Satisfied by
// *pipeline.Producer.
type Performer interface {
	PerformOrQueue(ctx context.Context, m api.Mutation) (pipeline.Outcome, error)
}

// OnlineChecker reports connectivity. Satisfied by *netmon.Monitor.
type OnlineChecker interface {
	IsOnline() bool
}

// Params describes one copy or move request.
type Params struct {
	SourceList string
	TargetList string
	Items      []api.ItemRef
	// SkipDuplicateCheck bypasses the pre-flight check. Set internally when a
	// resolution choice re-invokes the operation, so the prompt cannot
	// re-trigger.
	SkipDuplicateCheck bool
}

// Result summarizes a completed operation for the success message
// ("N items copied, M duplicates skipped").
type Result struct {
	Queued    bool
	Completed int
	Skipped   int
}

// Service coordinates copy/move operations. While offline, operations are
// queued through the producer (the duplicate pre-flight requires the network
// and is skipped — the server's 409 backstop still applies at replay time).
// While online, operations run through the retry controller so failures get
// the bounded interactive retry path.
type Service struct {
	lister   ItemLister
	sender   Sender
	producer Performer
	online   OnlineChecker
	resolver Resolver
	retrier  *retry.Controller
	undo     *UndoManager
	logger   *slog.Logger
}

// NewService wires a list-operation service.
func NewService(
	lister ItemLister,
	sender Sender,
	producer Performer,
	online OnlineChecker,
	resolver Resolver,
	retrier *retry.Controller,
	undo *UndoManager,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		lister:   lister,
		sender:   sender,
		producer: producer,
		online:   online,
		resolver: resolver,
		retrier:  retrier,
		undo:     undo,
		logger:   logger,
	}
}

// Retrier exposes the controller so the CLI can offer Retry/Dismiss after a
// recoverable failure.
func (s *Service) Retrier() *retry.Controller {
	return s.retrier
}

// Undo reverses the most recent move, if its window is still open, by
// issuing the compensating move (source and target swapped). The record is
// consumed before the network call, so a second undo is a no-op.
func (s *Service) Undo(ctx context.Context) error {
	rec, err := s.undo.Take()
	if err != nil {
		return err
	}

	for _, item := range rec.Items {
		m, err := api.MoveItem(rec.TargetList, item.ID, item.Type, rec.SourceList)
		if err != nil {
			return err
		}

		if _, err := s.producer.PerformOrQueue(ctx, m); err != nil {
			return fmt.Errorf("lists: undoing move: %w", err)
		}
	}

	s.logger.Info("move undone",
		slog.String("source", rec.SourceList),
		slog.String("target", rec.TargetList),
		slog.Int("items", len(rec.Items)),
	)

	return nil
}

// UndoAvailable reports whether an undo window is currently open.
func (s *Service) UndoAvailable() bool {
	return s.undo.Pending()
}

// Copy copies items into the target list. With a single item the operation
// kind is copy; with several it is bulkCopy and the retry counter is shared
// across the whole batch.
func (s *Service) Copy(ctx context.Context, p Params) (Result, error) {
	return s.run(ctx, p, false)
}

// Move moves items from the source list to the target list. On success the
// undo window opens.
func (s *Service) Move(ctx context.Context, p Params) (Result, error) {
	return s.run(ctx, p, true)
}

func (s *Service) run(ctx context.Context, p Params, move bool) (Result, error) {
	// Only the most recent move is undoable: starting a new move discards
	// the previous record before anything else happens, whatever the new
	// move's outcome.
	if move {
		s.undo.Clear()
	}

	// Offline: queue proactively, no pre-flight (it needs the network).
	if s.online != nil && !s.online.IsOnline() {
		return s.queueAll(ctx, p, move)
	}

	toSend := p.Items

	var skipped int

	if !p.SkipDuplicateCheck {
		remaining, duplicates, err := s.partitionDuplicates(ctx, p)
		if err != nil {
			return Result{}, err
		}

		if len(duplicates) > 0 {
			res, done, err := s.resolve(ctx, p, remaining, duplicates, move)
			if done {
				return res, err
			}

			toSend = remaining
			skipped = len(duplicates)
		}
	}

	if len(toSend) == 0 {
		return Result{Skipped: skipped}, nil
	}

	res, err := s.execute(ctx, p, toSend, move)
	res.Skipped += skipped

	return res, err
}

// HasDuplicate reports whether the target list already contains the item.
// Point-in-time check, not a transactional guarantee: a race with a
// concurrent mutation is possible, and the server's 409 is the backstop.
func (s *Service) HasDuplicate(ctx context.Context, itemID, itemType, targetList string) (bool, error) {
	existing, err := s.lister.ListItems(ctx, targetList)
	if err != nil {
		return false, err
	}

	want := api.ItemRef{ID: itemID, Type: itemType}.Key()
	for _, item := range existing {
		if item.Key() == want {
			return true, nil
		}
	}

	return false, nil
}

// partitionDuplicates splits the requested items into those absent from the
// target and those already present. Same point-in-time semantics as
// HasDuplicate, over a batch.
func (s *Service) partitionDuplicates(ctx context.Context, p Params) (remaining, duplicates []api.ItemRef, err error) {
	existing, err := s.lister.ListItems(ctx, p.TargetList)
	if err != nil {
		return nil, nil, err
	}

	present := make(map[string]bool, len(existing))
	for _, item := range existing {
		present[item.Key()] = true
	}

	for _, ref := range p.Items {
		if present[ref.Key()] {
			duplicates = append(duplicates, ref)
		} else {
			remaining = append(remaining, ref)
		}
	}

	return remaining, duplicates, nil
}

// resolve presents the duplicate prompt and applies the chosen path.
// done=true means the operation is fully handled here.
func (s *Service) resolve(ctx context.Context, p Params, remaining, duplicates []api.ItemRef, move bool) (Result, bool, error) {
	if move {
		switch s.resolver.ResolveMove(duplicates, p.TargetList) {
		case ChoiceRemoveFromSource:
			// Remove the duplicates from the source only, without re-adding
			// to the target; non-duplicates continue as a normal move.
			res, err := s.removeFromSource(ctx, p, duplicates)
			if err != nil {
				return res, true, err
			}

			if len(remaining) == 0 {
				return res, true, nil
			}

			rest, err := s.execute(ctx, p, remaining, true)
			rest.Skipped += res.Skipped

			return rest, true, err
		default:
			return Result{}, true, ErrCanceled
		}
	}

	switch s.resolver.ResolveCopy(duplicates, p.TargetList) {
	case ChoiceSkipDuplicates:
		// Skip the duplicates and copy the rest (nothing, for a single item).
		return Result{}, false, nil
	default:
		return Result{}, true, ErrCanceled
	}
}

// removeFromSource issues id-addressed removals for the duplicate items.
// Bypasses the duplicate check by construction — no copy/move is involved.
func (s *Service) removeFromSource(ctx context.Context, p Params, duplicates []api.ItemRef) (Result, error) {
	for _, ref := range duplicates {
		m, err := api.RemoveFromList(p.SourceList, ref.ID, ref.Type)
		if err != nil {
			return Result{}, err
		}

		if _, err := s.sender.Send(ctx, m); err != nil {
			return Result{}, err
		}
	}

	return Result{Skipped: len(duplicates)}, nil
}

// execute runs the copy/move through the retry controller. The operation
// closure resumes where it left off: items already sent are not re-sent on
// a manual retry.
func (s *Service) execute(ctx context.Context, p Params, items []api.ItemRef, move bool) (Result, error) {
	kind := retry.KindCopy

	switch {
	case move && len(items) > 1:
		kind = retry.KindBulkMove
	case move:
		kind = retry.KindMove
	case len(items) > 1:
		kind = retry.KindBulkCopy
	}

	queue := append([]api.ItemRef(nil), items...)
	sent := 0

	op := &retry.Operation{
		Kind:       kind,
		SourceList: p.SourceList,
		TargetList: p.TargetList,
		Do: func(ctx context.Context) error {
			for len(queue) > 0 {
				ref := queue[0]

				var (
					m   api.Mutation
					err error
				)

				if move {
					m, err = api.MoveItem(p.SourceList, ref.ID, ref.Type, p.TargetList)
				} else {
					m, err = api.CopyItem(p.SourceList, ref.ID, ref.Type, p.TargetList)
				}

				if err != nil {
					return err
				}

				if _, err := s.sender.Send(ctx, m); err != nil {
					return err
				}

				queue = queue[1:]
				sent++
			}

			// Recorded inside the closure so the window opens no matter
			// which attempt succeeded, including manual retries that run
			// through the controller directly.
			if move {
				s.undo.Record(p.SourceList, p.TargetList, items)
			}

			return nil
		},
	}

	if len(items) == 1 {
		op.ItemID = items[0].ID
		op.ItemType = items[0].Type
	}

	if err := s.retrier.Attempt(ctx, op); err != nil {
		return Result{Completed: sent}, err
	}

	return Result{Completed: sent}, nil
}

// queueAll serializes the operation into the pending queue while offline.
func (s *Service) queueAll(ctx context.Context, p Params, move bool) (Result, error) {
	for _, ref := range p.Items {
		var (
			m   api.Mutation
			err error
		)

		if move {
			m, err = api.MoveItem(p.SourceList, ref.ID, ref.Type, p.TargetList)
		} else {
			m, err = api.CopyItem(p.SourceList, ref.ID, ref.Type, p.TargetList)
		}

		if err != nil {
			return Result{}, err
		}

		if _, err := s.producer.PerformOrQueue(ctx, m); err != nil {
			return Result{}, err
		}
	}

	s.logger.Info("operation queued for later sync",
		slog.Bool("move", move),
		slog.Int("items", len(p.Items)),
	)

	return Result{Queued: true}, nil
}

// FindListByName resolves a list by display name, comparing NFC-normalized,
// case-folded forms so "Café" typed on any platform matches. Returns nil
// when no list matches.
func FindListByName(wl *api.Watchlist, name string) *api.List {
	want := strings.ToLower(norm.NFC.String(name))

	for i := range wl.Lists {
		if strings.ToLower(norm.NFC.String(wl.Lists[i].Name)) == want {
			return &wl.Lists[i]
		}
	}

	return nil
}
