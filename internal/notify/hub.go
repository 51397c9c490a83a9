// Package notify pushes sync notifications from the daemon to attached UI
// pages over websockets, so an open page can re-render from a fresh fetch
// when a background drain completes.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Message types pushed to pages.
const (
	TypeSyncComplete = "SYNC_COMPLETE"
)

// writeTimeout bounds a single push so one stuck page cannot stall the hub.
const writeTimeout = 5 * time.Second

// clientBuffer is the per-client message backlog; a client that falls
// further behind is dropped.
const clientBuffer = 8

// SyncComplete is the message broadcast after a drain pass.
type SyncComplete struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	Replayed int    `json:"replayed"`
	Failed   int    `json:"failed"`
}

// Hub broadcasts messages to every connected page. It is an http.Handler:
// mount it on the daemon's local listener and pages open a websocket to it.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{logger: logger, clients: make(map[chan []byte]struct{})}
}

// BroadcastSyncComplete pushes a SYNC_COMPLETE message to all pages.
func (h *Hub) BroadcastSyncComplete(success bool, replayed, failed int) {
	h.broadcast(SyncComplete{
		Type:     TypeSyncComplete,
		Success:  success,
		Replayed: replayed,
		Failed:   failed,
	})
}

// ClientCount reports how many pages are attached.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *Hub) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("could not encode notification", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			// Client too far behind; it will be dropped by its pump.
			close(ch)
			delete(h.clients, ch)
		}
	}
}

// ServeHTTP upgrades the connection and pumps broadcasts to the page until
// it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	ch := make(chan []byte, clientBuffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("page attached")

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[ch]; ok {
			close(ch)
			delete(h.clients, ch)
		}
		h.mu.Unlock()

		conn.CloseNow()
		h.logger.Debug("page detached")
	}()

	ctx := r.Context()

	// Discard inbound frames; the hub is push-only. CloseRead returns a
	// context that ends when the client disconnects.
	readCtx := conn.CloseRead(ctx)

	for {
		select {
		case <-readCtx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "client too slow")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()

			if err != nil {
				return
			}
		}
	}
}
