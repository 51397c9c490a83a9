package lists

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nollavik/watchsync/internal/api"
)

// UndoWindow is how long a completed move stays reversible.
const UndoWindow = 10 * time.Second

// ErrNothingToUndo is returned when no move is currently undoable — the
// window expired, the record was consumed, or no move happened.
var ErrNothingToUndo = errors.New("lists: nothing to undo")

// UndoRecord retains enough of a completed move to reverse it with a
// compensating move.
type UndoRecord struct {
	SourceList string
	TargetList string
	Items      []api.ItemRef
}

// UndoManager owns at most one live UndoRecord. Starting a new move or
// expiring the timer discards the previous one — only the most recent move
// is undoable.
type UndoManager struct {
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic window tests

	mu       sync.Mutex
	rec      *UndoRecord
	deadline time.Time
	timer    *time.Timer
}

// NewUndoManager creates an empty manager.
func NewUndoManager(logger *slog.Logger) *UndoManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &UndoManager{logger: logger, nowFunc: time.Now}
}

// Record replaces any live record with this move and restarts the window.
func (u *UndoManager) Record(sourceList, targetList string, items []api.ItemRef) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.timer != nil {
		u.timer.Stop()
	}

	u.rec = &UndoRecord{SourceList: sourceList, TargetList: targetList, Items: items}
	u.deadline = u.nowFunc().Add(UndoWindow)

	// Timer expiry silently discards the record. The deadline check in Take
	// is authoritative; the timer just releases memory promptly.
	u.timer = time.AfterFunc(UndoWindow, u.expire)

	u.logger.Debug("undo window opened",
		slog.String("source", sourceList),
		slog.String("target", targetList),
		slog.Int("items", len(items)),
	)
}

// Take atomically claims the live record if the window is still open,
// clearing it so a second undo is a no-op. Returns ErrNothingToUndo
// otherwise.
func (u *UndoManager) Take() (*UndoRecord, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.rec == nil || u.nowFunc().After(u.deadline) {
		u.rec = nil
		return nil, ErrNothingToUndo
	}

	rec := u.rec
	u.rec = nil

	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}

	return rec, nil
}

// Clear discards the live record, if any, without consuming it. Called when
// a new move starts so only the most recent move is ever undoable.
func (u *UndoManager) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}

	if u.rec != nil {
		u.rec = nil
		u.logger.Debug("undo window discarded")
	}
}

// Pending reports whether an undo is currently available.
func (u *UndoManager) Pending() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.rec != nil && !u.nowFunc().After(u.deadline)
}

func (u *UndoManager) expire() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.rec != nil && u.nowFunc().After(u.deadline) {
		u.rec = nil
		u.logger.Debug("undo window expired")
	}
}
