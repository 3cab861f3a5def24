package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// catchupLimit bounds how many journal entries are replayed to a fresh
// subscriber.
const catchupLimit = 100

// CatchupSource replays recent history for a channel so late subscribers
// start with context. Implemented over the supervisor's journal.
type CatchupSource interface {
	CatchupEvents(channel string, limit int) []any
}

// Hub manages dashboard WebSocket connections and their channel
// subscriptions. One hub exists per process; the supervisor broadcasts
// into it.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*hubConn

	channelMu sync.RWMutex
	channels  map[string]map[string]bool

	catchup      CatchupSource
	writeTimeout time.Duration
	logger       *slog.Logger
}

// hubConn is one dashboard client. subscriptions is only touched from the
// goroutine running the connection's read loop.
type hubConn struct {
	id            string
	conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// clientMessage is the dashboard-to-server wire shape.
type clientMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
}

// eventEnvelope wraps every broadcast payload on the wire.
type eventEnvelope struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHub creates a hub. catchup may be nil to disable replay.
func NewHub(catchup CatchupSource, writeTimeout time.Duration) *Hub {
	return &Hub{
		connections:  make(map[string]*hubConn),
		channels:     make(map[string]map[string]bool),
		catchup:      catchup,
		writeTimeout: writeTimeout,
		logger:       slog.Default().With("component", "ws-hub"),
	}
}

// HandleConnection runs one dashboard connection: registration, the read
// loop, and cleanup. Blocks until the socket closes.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &hubConn{
		id:            uuid.New().String(),
		conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	h.register(c)
	defer h.unregister(c)

	h.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": c.id,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("Invalid dashboard message", "connection_id", c.id, "error", err)
			continue
		}
		h.handleClientMessage(c, &msg)
	}
}

// Broadcast sends a payload to every subscriber of a channel. Implements
// the supervisor's broadcaster.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(eventEnvelope{
		Type:      "event",
		Channel:   channel,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Warn("Failed to marshal broadcast", "channel", channel, "error", err)
		return
	}

	h.channelMu.RLock()
	ids := make([]string, 0, len(h.channels[channel]))
	for id := range h.channels[channel] {
		ids = append(ids, id)
	}
	h.channelMu.RUnlock()

	// Connection pointers are snapshotted before sending so a slow client
	// write never stalls register/unregister.
	h.mu.RLock()
	conns := make([]*hubConn, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := h.sendRaw(c, data); err != nil {
			h.logger.Warn("Failed to send to dashboard client",
				"connection_id", c.id, "error", err)
		}
	}
}

// ActiveConnections returns the number of connected dashboard clients.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// subscriberCount is used by tests to poll instead of sleeping.
func (h *Hub) subscriberCount(channel string) int {
	h.channelMu.RLock()
	defer h.channelMu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) handleClientMessage(c *hubConn, msg *clientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for subscribe"})
			return
		}
		h.subscribe(c, msg.Channel)
		h.sendJSON(c, map[string]string{
			"type":    "subscription.confirmed",
			"channel": msg.Channel,
		})
		h.replayCatchup(c, msg.Channel)

	case "unsubscribe":
		if msg.Channel == "" {
			h.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for unsubscribe"})
			return
		}
		h.unsubscribe(c, msg.Channel)

	case "ping":
		h.sendJSON(c, map[string]string{"type": "pong"})
	}
}

func (h *Hub) subscribe(c *hubConn, channel string) {
	h.channelMu.Lock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[string]bool)
	}
	h.channels[channel][c.id] = true
	h.channelMu.Unlock()

	c.subscriptions[channel] = true
}

func (h *Hub) unsubscribe(c *hubConn, channel string) {
	h.channelMu.Lock()
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	h.channelMu.Unlock()

	delete(c.subscriptions, channel)
}

// replayCatchup delivers recent history for a channel so a fresh dashboard
// renders without a REST round trip.
func (h *Hub) replayCatchup(c *hubConn, channel string) {
	if h.catchup == nil {
		return
	}
	for _, payload := range h.catchup.CatchupEvents(channel, catchupLimit) {
		data, err := json.Marshal(eventEnvelope{
			Type:      "catchup",
			Channel:   channel,
			Payload:   payload,
			Timestamp: time.Now(),
		})
		if err != nil {
			continue
		}
		if err := h.sendRaw(c, data); err != nil {
			h.logger.Warn("Failed to send catchup event",
				"connection_id", c.id, "error", err)
			return
		}
	}
}

func (h *Hub) register(c *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.id] = c
}

func (h *Hub) unregister(c *hubConn) {
	for ch := range c.subscriptions {
		h.unsubscribe(c, ch)
	}

	h.mu.Lock()
	delete(h.connections, c.id)
	h.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) sendJSON(c *hubConn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("Failed to marshal hub message", "connection_id", c.id, "error", err)
		return
	}
	if err := h.sendRaw(c, data); err != nil {
		h.logger.Warn("Failed to send hub message", "connection_id", c.id, "error", err)
	}
}

func (h *Hub) sendRaw(c *hubConn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, h.writeTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}
