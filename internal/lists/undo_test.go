package lists

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nollavik/watchsync/internal/api"
)

func newTestUndo(t *testing.T) (*UndoManager, *time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := NewUndoManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	u.nowFunc = func() time.Time { return now }

	return u, &now
}

var testItems = []api.ItemRef{{ID: "m1", Type: api.TypeMovie}}

// --- window tests ---

func TestTake_InsideWindowReturnsRecord(t *testing.T) {
	u, now := newTestUndo(t)

	u.Record("watch-later", "favorites", testItems)
	*now = now.Add(9900 * time.Millisecond)

	rec, err := u.Take()
	require.NoError(t, err)
	assert.Equal(t, "watch-later", rec.SourceList)
	assert.Equal(t, "favorites", rec.TargetList)
	assert.Equal(t, testItems, rec.Items)
}

func TestTake_AfterWindowExpires(t *testing.T) {
	u, now := newTestUndo(t)

	u.Record("watch-later", "favorites", testItems)
	*now = now.Add(10100 * time.Millisecond)

	_, err := u.Take()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestTake_WithoutRecord(t *testing.T) {
	u, _ := newTestUndo(t)

	_, err := u.Take()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestTake_SecondTakeIsRefused(t *testing.T) {
	u, _ := newTestUndo(t)

	u.Record("a", "b", testItems)

	_, err := u.Take()
	require.NoError(t, err)

	_, err = u.Take()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestRecord_NewMoveReplacesOld(t *testing.T) {
	u, _ := newTestUndo(t)

	u.Record("a", "b", testItems)
	u.Record("c", "d", testItems)

	rec, err := u.Take()
	require.NoError(t, err)
	assert.Equal(t, "c", rec.SourceList)
	assert.Equal(t, "d", rec.TargetList)
}

func TestClear_DiscardsRecord(t *testing.T) {
	u, _ := newTestUndo(t)

	u.Record("a", "b", testItems)
	u.Clear()

	assert.False(t, u.Pending())

	_, err := u.Take()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestClear_WithoutRecordIsHarmless(t *testing.T) {
	u, _ := newTestUndo(t)

	u.Clear()
	assert.False(t, u.Pending())
}

func TestPending_TracksWindow(t *testing.T) {
	u, now := newTestUndo(t)

	assert.False(t, u.Pending())

	u.Record("a", "b", testItems)
	assert.True(t, u.Pending())

	*now = now.Add(UndoWindow + time.Millisecond)
	assert.False(t, u.Pending())
}
