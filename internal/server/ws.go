package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/handcard/internal/app"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SnapshotSource supplies the state pushed to websocket clients.
type SnapshotSource interface {
	Snapshot() app.Snapshot
}

// SnapshotHub pushes pipeline snapshots to websocket clients whenever the
// card or the in-progress flag changes.
type SnapshotHub struct {
	source   SnapshotSource
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// NewSnapshotHub creates a hub that polls source every interval.
func NewSnapshotHub(source SnapshotSource, interval time.Duration, logger *zap.Logger) *SnapshotHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotHub{
		source:   source,
		interval: interval,
		logger:   logger,
		clients:  make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request and sends the current snapshot immediately.
func (h *SnapshotHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &wsClient{conn: conn}
	msg, err := json.Marshal(h.source.Snapshot())
	if err != nil {
		h.logger.Error("encode snapshot", zap.Error(err))
		return
	}
	if err := c.write(msg); err != nil {
		return
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer h.remove(c)

	// Clients never send anything meaningful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Run polls the source and broadcasts changed snapshots until ctx is done.
func (h *SnapshotHub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last snapshotKey
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s := h.source.Snapshot()
		key := keyOf(s)
		if key == last {
			continue
		}
		last = key

		if h.Clients() == 0 {
			continue
		}
		msg, err := json.Marshal(s)
		if err != nil {
			h.logger.Error("encode snapshot", zap.Error(err))
			continue
		}
		h.Broadcast(msg)
	}
}

// Broadcast sends msg to every client, dropping those that fail.
func (h *SnapshotHub) Broadcast(msg []byte) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			h.logger.Debug("dropping websocket client", zap.Error(err))
			h.remove(c)
			c.conn.Close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *SnapshotHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *SnapshotHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *SnapshotHub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

type snapshotKey struct {
	version     uint64
	inProgress  bool
	enabled     bool
	clearSignal int
}

func keyOf(s app.Snapshot) snapshotKey {
	return snapshotKey{
		version:     s.Version,
		inProgress:  s.InProgress,
		enabled:     s.Enabled,
		clearSignal: s.ClearSignal,
	}
}
