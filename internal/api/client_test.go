package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Do tests ---

func TestDo_Success(t *testing.T) {
	var gotAuth, gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, StaticTokenSource("tok-1"), nil)

	body, err := c.Do(context.Background(), http.MethodGet, "/api/watchlist", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, userAgent, gotUA)
}

func TestDo_ErrorStatusReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"no such item"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, StaticTokenSource("tok"), nil)

	_, err := c.Do(context.Background(), http.MethodDelete, "/api/items/movie/9", nil, nil)
	require.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no such item", apiErr.Message)
}

func TestDo_TransportErrorIsNotAPIError(t *testing.T) {
	// Closed server: the request never completes.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, nil, StaticTokenSource("tok"), nil)

	_, err := c.Do(context.Background(), http.MethodGet, "/api/watchlist", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Equal(t, KindNetwork, Classify(err).Kind)
}

func TestDo_AuthorizationRederivedNotReplayed(t *testing.T) {
	// A stale Authorization captured at enqueue time must be ignored; the
	// live token source wins. This is what lets queued mutations survive
	// token rotation.
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, StaticTokenSource("fresh"), nil)

	stale := http.Header{}
	stale.Set("Authorization", "Bearer stale")
	stale.Set("Idempotency-Key", "key-1")

	_, err := c.DoMutation(context.Background(), Mutation{
		Method: http.MethodPost,
		Path:   "/api/lists/copy",
		Header: stale,
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", gotAuth)
}

func TestDo_ForwardsIdempotencyKey(t *testing.T) {
	var gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, StaticTokenSource("tok"), nil)

	m, err := DeleteItem(TypeMovie, "42")
	require.NoError(t, err)
	require.NotEmpty(t, m.Header.Get("Idempotency-Key"))

	_, err = c.Send(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, m.Header.Get("Idempotency-Key"), gotKey)
}

func TestDo_NoTokenSourceSkipsAuth(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil, nil)

	_, err := c.Do(context.Background(), http.MethodGet, "/ping", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}
