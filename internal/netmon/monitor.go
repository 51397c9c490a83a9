// Package netmon tracks backend connectivity. There is no platform
// online/offline signal for a CLI process, so the monitor probes the server
// on an interval and fires callbacks on transitions. It never drains the
// pending queue itself — the sync engine subscribes to the online hook.
package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Defaults for probe timing.
const (
	DefaultInterval     = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
)

// ProbeFunc reports whether the backend is reachable right now.
type ProbeFunc func(ctx context.Context) bool

// Monitor polls a connectivity probe and exposes the current state plus
// edge-triggered callbacks. Safe for concurrent use.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	online    bool
	known     bool // first probe result not yet seen
	onOnline  []func()
	onOffline []func()
}

// New creates a Monitor with the given probe. A zero interval uses
// DefaultInterval.
func New(probe ProbeFunc, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Monitor{probe: probe, interval: interval, logger: logger}
}

// HTTPProbe returns a ProbeFunc that issues a HEAD request to baseURL. Any
// HTTP response counts as online — even a 5xx means the network path works.
func HTTPProbe(baseURL string, client *http.Client) ProbeFunc {
	if client == nil {
		client = &http.Client{Timeout: defaultProbeTimeout}
	}

	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return false
		}

		resp, err := client.Do(req)
		if err != nil {
			return false
		}

		resp.Body.Close()

		return true
	}
}

// IsOnline returns the last observed connectivity state. Before the first
// probe completes it optimistically reports online, so a fresh process does
// not queue mutations it could have sent.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.known {
		return true
	}

	return m.online
}

// OnOnline registers a callback fired once per offline→online transition.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers a callback fired once per online→offline transition.
func (m *Monitor) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onOffline = append(m.onOffline, fn)
}

// Check runs the probe once and fires transition callbacks if the state
// changed. Returns the current state. Called by Run and directly by tests
// and one-shot commands.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.probe(ctx)

	m.mu.Lock()

	transitioned := m.known && online != m.online
	first := !m.known
	m.online = online
	m.known = true

	var callbacks []func()

	if transitioned || (first && !online) {
		if online {
			callbacks = append(callbacks, m.onOnline...)
		} else {
			callbacks = append(callbacks, m.onOffline...)
		}
	}

	m.mu.Unlock()

	if transitioned {
		m.logger.Info("connectivity changed", slog.Bool("online", online))
	}

	// Fire outside the lock — callbacks may call IsOnline.
	for _, fn := range callbacks {
		fn()
	}

	return online
}

// Run probes on the configured interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
