// Package ws pushes dashboard updates to browsers over WebSocket. A Hub
// bridges the Redis signal bus to the connections of each signed-in user.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tontine/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024
	sendBufferSize = 64
)

// SessionResolver identifies the user behind an upgrade request.
type SessionResolver interface {
	Current(ctx context.Context) (domain.Session, error)
}

// SnapshotFunc returns the last known summary of a user, sent right after
// the connection opens.
type SnapshotFunc func(ctx context.Context, userID string) (domain.DashboardSummary, bool)

// Config tunes a Hub.
type Config struct {
	StartedAt time.Time
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
	Snapshot    SnapshotFunc
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub tracks connected clients and routes bus messages to the clients of
// the user each message belongs to.
type Hub struct {
	bus      domain.SignalBus
	sessions SessionResolver
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu         sync.RWMutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	// done is closed when Run returns.
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a Hub.
func NewHub(bus domain.SignalBus, sessions SessionResolver, logger *slog.Logger, cfg Config) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	check := cfg.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Hub{
		bus:      bus,
		sessions: sessions,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     check,
		},
		logger:     logger.With(slog.String("component", "ws")),
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run subscribes to every user channel and serves registrations and
// broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	msgs, err := h.bus.Subscribe(ctx, ChannelPattern)
	if err != nil {
		return err
	}
	h.logger.Info("ws: subscribed", slog.String("channel", ChannelPattern))

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.String("user_id", c.userID),
				slog.Int("total_clients", h.ClientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", h.ClientCount()))

		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: bus subscription closed")
				msgs = nil
				continue
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil || env.UserID == "" {
				h.logger.Warn("ws: dropping malformed bus message")
				continue
			}
			h.deliver(env.UserID, data)
		}
	}
}

func (h *Hub) deliver(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws: dropping message for slow client", slog.String("user_id", c.userID))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades an authenticated request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Current(r.Context())
	if err != nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		userID: s.User.ID,
		send:   make(chan []byte, sendBufferSize),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.sendInitial(r.Context())

	go c.writePump()
	go c.readPump()
}

// sendInitial queues a status frame and, when known, the latest summary.
func (c *client) sendInitial(ctx context.Context) {
	uptime := max(int64(time.Since(c.hub.cfg.StartedAt).Seconds()), 0)
	if msg, err := newEnvelope(TypeStatus, c.userID, map[string]any{
		"connected":      true,
		"uptime_seconds": uptime,
	}); err == nil {
		c.enqueue(msg)
	}

	if c.hub.cfg.Snapshot == nil {
		return
	}
	if s, ok := c.hub.cfg.Snapshot(ctx, c.userID); ok {
		if msg, err := newEnvelope(TypeDashboard, c.userID, s); err == nil {
			c.enqueue(msg)
		}
	}
}

func (c *client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// readPump discards client frames and keeps the read deadline alive.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump sends queued JSON text frames and periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
