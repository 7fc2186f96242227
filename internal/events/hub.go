// Package events pushes loading, playback, and wallet updates to the UIs
// over a websocket so neither front-end has to poll.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

type EventType string

const (
	EventLoading  EventType = "loading"
	EventPlayback EventType = "playback"
	EventWallet   EventType = "wallet"
)

type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// LoadingPayload marks an action kind in or out of its loading state.
type LoadingPayload struct {
	Kind    string `json:"kind"` // "explanation", "narration", "art"
	Loading bool   `json:"loading"`
}

type PlaybackPayload struct {
	State string `json:"state"` // "playing" or "idle"
}

type WalletPayload struct {
	Balance int64 `json:"balance"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API key middleware has already run; UIs connect from file://
	// and localhost origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans every event out to all connected clients. Slow clients get
// dropped rather than blocking the broadcaster.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and streams events until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Event, sendBufferSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("events client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards inbound frames; its job is noticing disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for event := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(event); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast delivers to every connected client; a client with a full
// buffer is disconnected.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	var stale []*client
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if len(stale) > 0 {
		h.logger.Warn("dropped slow event clients", zap.Int("count", len(stale)))
	}
}

// Convenience emitters used by the handlers and the playback observer.

func (h *Hub) EmitLoading(sessionID, kind string, loading bool) {
	h.Broadcast(Event{
		Type:      EventLoading,
		SessionID: sessionID,
		Payload:   LoadingPayload{Kind: kind, Loading: loading},
	})
}

func (h *Hub) EmitPlayback(state string) {
	h.Broadcast(Event{Type: EventPlayback, Payload: PlaybackPayload{State: state}})
}

func (h *Hub) EmitWallet(sessionID string, balance int64) {
	h.Broadcast(Event{
		Type:      EventWallet,
		SessionID: sessionID,
		Payload:   WalletPayload{Balance: balance},
	})
}
