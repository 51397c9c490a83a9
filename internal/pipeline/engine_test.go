package pipeline

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nollavik/watchsync/internal/api"
	"github.com/nollavik/watchsync/internal/store"
)

// fakeReplayer returns scripted errors per URL and records replay order.
type fakeReplayer struct {
	mu     sync.Mutex
	errs   map[string]error
	played []string
}

func (f *fakeReplayer) DoMutation(_ context.Context, m api.Mutation) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.played = append(f.played, m.Path)

	return nil, f.errs[m.Path]
}

// fakePending is an in-memory PendingStore.
type fakePending struct {
	mu       sync.Mutex
	changes  map[int64]store.PendingChange
	nextID   int64
	snapshot []byte
}

func newFakePending() *fakePending {
	return &fakePending{changes: map[int64]store.PendingChange{}}
}

func (f *fakePending) add(method, url string, enqueuedAt time.Time) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.changes[f.nextID] = store.PendingChange{
		ID:         f.nextID,
		Method:     method,
		URL:        url,
		EnqueuedAt: enqueuedAt,
	}

	return f.nextID
}

func (f *fakePending) ListPending(context.Context) ([]store.PendingChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]store.PendingChange, 0, len(f.changes))
	for _, c := range f.changes {
		out = append(out, c)
	}

	return out, nil
}

func (f *fakePending) RemovePending(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.changes, id)

	return nil
}

func (f *fakePending) MarkAttempt(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.changes[id]; ok {
		c.Attempts++
		f.changes[id] = c
	}

	return nil
}

func (f *fakePending) SaveSnapshot(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshot = data

	return nil
}

func (f *fakePending) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.changes)
}

// fakeFetcher returns a fixed watchlist.
type fakeFetcher struct {
	fetched int
	wl      *api.Watchlist
	err     error
}

func (f *fakeFetcher) FetchWatchlist(context.Context) (*api.Watchlist, error) {
	f.fetched++
	return f.wl, f.err
}

// --- SyncNow tests ---

func TestSyncNow_ReplaysInEnqueueOrder(t *testing.T) {
	pending := newFakePending()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of timestamp order on purpose.
	pending.add(http.MethodPut, "/c", base.Add(3*time.Second))
	pending.add(http.MethodPut, "/a", base.Add(1*time.Second))
	pending.add(http.MethodPut, "/b", base.Add(2*time.Second))

	replayer := &fakeReplayer{}
	e := NewEngine(replayer, nil, pending, staticOnline(true), discardLogger())

	report := e.SyncNow(context.Background())

	assert.True(t, report.Success)
	assert.Equal(t, 3, report.Replayed)
	assert.Equal(t, []string{"/a", "/b", "/c"}, replayer.played)
	assert.Zero(t, pending.count())
}

func TestSyncNow_OfflineSkips(t *testing.T) {
	pending := newFakePending()
	pending.add(http.MethodPut, "/a", time.Now())

	replayer := &fakeReplayer{}
	e := NewEngine(replayer, nil, pending, staticOnline(false), discardLogger())

	report := e.SyncNow(context.Background())

	assert.True(t, report.Skipped)
	assert.Empty(t, replayer.played)
	assert.Equal(t, 1, pending.count())
}

func TestSyncNow_FailureLeavesRecordAndContinues(t *testing.T) {
	pending := newFakePending()
	base := time.Now()
	pending.add(http.MethodPut, "/a", base)
	failedID := pending.add(http.MethodPut, "/b", base.Add(time.Second))
	pending.add(http.MethodPut, "/c", base.Add(2*time.Second))

	replayer := &fakeReplayer{errs: map[string]error{
		"/b": &api.APIError{StatusCode: http.StatusInternalServerError, Err: api.ErrServerError},
	}}
	e := NewEngine(replayer, nil, pending, staticOnline(true), discardLogger())

	report := e.SyncNow(context.Background())

	assert.False(t, report.Success)
	assert.Equal(t, 2, report.Replayed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Remaining)

	// The failed record stayed; the later record still ran.
	assert.Equal(t, []string{"/a", "/b", "/c"}, replayer.played)
	assert.Equal(t, 1, pending.count())

	changes, err := pending.ListPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, failedID, changes[0].ID)
	assert.Equal(t, 1, changes[0].Attempts)
}

func TestSyncNow_NotFoundSettlesRecord(t *testing.T) {
	// Deleting an already-deleted item returns 404. Keeping the record
	// would retry it forever, so the pass treats it as settled.
	pending := newFakePending()
	pending.add(http.MethodDelete, "/api/items/movie/9", time.Now())

	replayer := &fakeReplayer{errs: map[string]error{
		"/api/items/movie/9": &api.APIError{StatusCode: http.StatusNotFound, Err: api.ErrNotFound},
	}}
	e := NewEngine(replayer, nil, pending, staticOnline(true), discardLogger())

	report := e.SyncNow(context.Background())

	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Replayed)
	assert.Zero(t, pending.count())
}

func TestSyncNow_RefreshesSnapshotAfterFullSuccess(t *testing.T) {
	pending := newFakePending()
	pending.add(http.MethodPut, "/a", time.Now())

	fetcher := &fakeFetcher{wl: &api.Watchlist{
		Movies: []api.Item{{ID: "m1", Type: api.TypeMovie, Title: "Heat"}},
	}}
	e := NewEngine(&fakeReplayer{}, fetcher, pending, staticOnline(true), discardLogger())

	report := e.SyncNow(context.Background())

	assert.True(t, report.Success)
	assert.Equal(t, 1, fetcher.fetched)
	assert.Contains(t, string(pending.snapshot), "Heat")
}

func TestSyncNow_NoSnapshotRefreshOnPartialFailure(t *testing.T) {
	pending := newFakePending()
	pending.add(http.MethodPut, "/a", time.Now())

	replayer := &fakeReplayer{errs: map[string]error{
		"/a": &api.APIError{StatusCode: http.StatusInternalServerError, Err: api.ErrServerError},
	}}
	fetcher := &fakeFetcher{wl: &api.Watchlist{}}
	e := NewEngine(replayer, fetcher, pending, staticOnline(true), discardLogger())

	e.SyncNow(context.Background())

	assert.Zero(t, fetcher.fetched)
}

func TestSyncNow_EmptyQueueDoesNotRefreshSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{wl: &api.Watchlist{}}
	e := NewEngine(&fakeReplayer{}, fetcher, newFakePending(), staticOnline(true), discardLogger())

	report := e.SyncNow(context.Background())

	assert.True(t, report.Success)
	assert.Zero(t, fetcher.fetched)
}

// --- notification tests ---

func TestSyncNow_NotifiesSubscribersOnce(t *testing.T) {
	pending := newFakePending()
	pending.add(http.MethodPut, "/a", time.Now())

	e := NewEngine(&fakeReplayer{}, nil, pending, staticOnline(true), discardLogger())

	var reports []Report

	e.Subscribe(func(r Report) { reports = append(reports, r) })

	e.SyncNow(context.Background())

	require.Len(t, reports, 1)
	assert.True(t, reports[0].Success)
	assert.Equal(t, 1, reports[0].Replayed)
}

func TestSyncNow_ReentrantCallFromSubscriberSkips(t *testing.T) {
	pending := newFakePending()
	pending.add(http.MethodPut, "/a", time.Now())

	e := NewEngine(&fakeReplayer{}, nil, pending, staticOnline(true), discardLogger())

	var nested Report

	e.Subscribe(func(r Report) {
		if !r.Skipped {
			nested = e.SyncNow(context.Background())
		}
	})

	outer := e.SyncNow(context.Background())

	assert.False(t, outer.Skipped)
	assert.True(t, nested.Skipped)
}

// --- end-to-end drain scenario ---

func TestSyncNow_ThreeOfflineChangesDrainInOnePass(t *testing.T) {
	// The canonical round trip: three mutations made offline, then
	// connectivity returns and one pass settles all of them in order.
	pending := newFakePending()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	pending.add(http.MethodPut, "/api/items/movie/1/watched", base)
	pending.add(http.MethodDelete, "/api/items/movie/2", base.Add(time.Second))
	pending.add(http.MethodPost, "/api/lists/move", base.Add(2*time.Second))

	replayer := &fakeReplayer{}
	fetcher := &fakeFetcher{wl: &api.Watchlist{}}
	e := NewEngine(replayer, fetcher, pending, staticOnline(true), discardLogger())

	report := e.SyncNow(context.Background())

	assert.True(t, report.Success)
	assert.Equal(t, 3, report.Replayed)
	assert.Zero(t, report.Remaining)
	assert.Equal(t, []string{
		"/api/items/movie/1/watched",
		"/api/items/movie/2",
		"/api/lists/move",
	}, replayer.played)
	assert.Zero(t, pending.count())
	assert.Equal(t, 1, fetcher.fetched)
}
