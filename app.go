package main

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/nollavik/watchsync/internal/api"
	"github.com/nollavik/watchsync/internal/netmon"
	"github.com/nollavik/watchsync/internal/pipeline"
	"github.com/nollavik/watchsync/internal/store"
)

// app bundles the wired components every command needs. Built per-invocation
// by newApp; Close releases the store.
type app struct {
	logger   *slog.Logger
	client   *api.Client
	store    *store.Store // nil when the local database is unavailable
	monitor  *netmon.Monitor
	producer *pipeline.Producer
	engine   *pipeline.Engine // nil when the local database is unavailable
}

// newApp wires the client, store, monitor, producer, and engine from the
// resolved config. A store failure is downgraded to a warning: the app stays
// usable, just without offline support.
func newApp(ctx context.Context) *app {
	logger := buildLogger()

	httpClient := &http.Client{Timeout: resolvedCfg.Timeout}

	tokenSource := &api.FileTokenSource{
		Path:   resolvedCfg.TokenPath,
		Config: oauthConfig(),
		Logger: logger,
	}

	client := api.NewClient(resolvedCfg.ServerURL, httpClient, tokenSource, logger)

	monitor := netmon.New(
		netmon.HTTPProbe(resolvedCfg.ServerURL, nil),
		resolvedCfg.ProbeInterval,
		logger,
	)

	var (
		st    *store.Store
		queue pipeline.ChangeQueue
		pend  pipeline.PendingStore
	)

	st, err := store.Open(resolvedCfg.StatePath, logger)
	if err != nil {
		logger.Warn("local store unavailable, offline support disabled",
			slog.String("error", err.Error()),
		)

		st = nil
	} else {
		queue = st
		pend = st
	}

	producer := pipeline.NewProducer(client, queue, monitor, logger)

	var engine *pipeline.Engine
	if pend != nil {
		engine = pipeline.NewEngine(client, client, pend, monitor, logger)
	}

	// One probe up front so offline commands queue proactively instead of
	// burning a doomed network attempt.
	monitor.Check(ctx)

	return &app{
		logger:   logger,
		client:   client,
		store:    st,
		monitor:  monitor,
		producer: producer,
		engine:   engine,
	}
}

// Close releases resources held by the app.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// oauthConfig builds the oauth2 configuration for token refresh and login
// from the resolved config.
func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: resolvedCfg.ClientID,
		Scopes:   resolvedCfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       resolvedCfg.AuthURL,
			TokenURL:      resolvedCfg.TokenURL,
			DeviceAuthURL: resolvedCfg.DeviceAuthURL,
		},
	}
}
