package netmon

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeProbe returns scripted results in order, repeating the last one.
func fakeProbe(results ...bool) ProbeFunc {
	i := 0

	return func(context.Context) bool {
		r := results[i]
		if i < len(results)-1 {
			i++
		}

		return r
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- state tests ---

func TestIsOnline_OptimisticBeforeFirstProbe(t *testing.T) {
	m := New(fakeProbe(false), 0, discardLogger())

	assert.True(t, m.IsOnline())
}

func TestCheck_UpdatesState(t *testing.T) {
	m := New(fakeProbe(false, true), 0, discardLogger())
	ctx := context.Background()

	assert.False(t, m.Check(ctx))
	assert.False(t, m.IsOnline())

	assert.True(t, m.Check(ctx))
	assert.True(t, m.IsOnline())
}

// --- callback tests ---

func TestCallbacks_FireOncePerTransition(t *testing.T) {
	m := New(fakeProbe(true, true, false, false, true), 0, discardLogger())
	ctx := context.Background()

	var onlineFired, offlineFired int

	m.OnOnline(func() { onlineFired++ })
	m.OnOffline(func() { offlineFired++ })

	m.Check(ctx) // first observation, online: no transition
	m.Check(ctx) // still online
	m.Check(ctx) // online -> offline
	m.Check(ctx) // still offline
	m.Check(ctx) // offline -> online

	assert.Equal(t, 1, onlineFired)
	assert.Equal(t, 1, offlineFired)
}

func TestCallbacks_FirstObservationOfflineFires(t *testing.T) {
	// A fresh process that starts offline should learn so immediately,
	// since IsOnline reported optimistic-online until now.
	m := New(fakeProbe(false), 0, discardLogger())

	var offlineFired int

	m.OnOffline(func() { offlineFired++ })

	m.Check(context.Background())

	assert.Equal(t, 1, offlineFired)
}

func TestCallbacks_MayQueryStateWithoutDeadlock(t *testing.T) {
	m := New(fakeProbe(true, false), 0, discardLogger())
	ctx := context.Background()

	var sawOffline bool

	m.OnOffline(func() { sawOffline = !m.IsOnline() })

	m.Check(ctx)
	m.Check(ctx)

	assert.True(t, sawOffline)
}

// --- probe tests ---

func TestHTTPProbe_AnyResponseIsOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	probe := HTTPProbe(srv.URL, srv.Client())
	assert.True(t, probe(context.Background()))
}

func TestHTTPProbe_UnreachableIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	probe := HTTPProbe(srv.URL, nil)
	assert.False(t, probe(context.Background()))
}

// --- run tests ---

func TestRun_StopsOnContextCancel(t *testing.T) {
	probed := make(chan struct{}, 1)
	probe := func(context.Context) bool {
		select {
		case probed <- struct{}{}:
		default:
		}

		return true
	}

	m := New(probe, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() { done <- m.Run(ctx) }()

	// Run checks once before the first tick.
	select {
	case <-probed:
	case <-time.After(time.Second):
		t.Fatal("Run did not probe on startup")
	}

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
