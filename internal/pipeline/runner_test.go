package pipeline

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- trigger tests ---

func TestTrigger_CoalescesWhileQueued(t *testing.T) {
	r := NewRunner(nil, time.Hour, discardLogger())

	r.Trigger("first")
	r.Trigger("second") // coalesces into the queued trigger

	assert.Len(t, r.triggers, 1)
}

func TestRun_DrainsOnTrigger(t *testing.T) {
	pending := newFakePending()
	pending.add(http.MethodPut, "/a", time.Now())

	replayer := &fakeReplayer{}
	engine := NewEngine(replayer, nil, pending, staticOnline(true), discardLogger())
	r := NewRunner(engine, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- r.Run(ctx) }()

	r.Trigger("connectivity restored")

	require.Eventually(t, func() bool { return pending.count() == 0 },
		2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// --- token watch tests ---

func TestWatchTokenFile_TriggersOnAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")

	r := NewRunner(nil, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- r.WatchTokenFile(ctx, dir, tokenPath) }()

	// Give the watcher a moment to attach before writing.
	time.Sleep(100 * time.Millisecond)

	// Token saves are write-temp-then-rename.
	tmp := filepath.Join(dir, ".token-1.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{}`), 0o600))
	require.NoError(t, os.Rename(tmp, tokenPath))

	select {
	case reason := <-r.triggers:
		assert.Equal(t, "token file changed", reason)
	case <-time.After(2 * time.Second):
		t.Fatal("rename into place did not trigger a drain")
	}

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("WatchTokenFile did not return after cancel")
	}
}

func TestWatchTokenFile_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")

	r := NewRunner(nil, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = r.WatchTokenFile(ctx, dir, tokenPath) }()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))

	select {
	case <-r.triggers:
		t.Fatal("unrelated file must not trigger a drain")
	case <-time.After(300 * time.Millisecond):
	}
}
