// Package realtime pushes appointment events to connected clients over
// WebSockets. Connections are keyed by user id so lifecycle events reach
// exactly the appointment's participants.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/identity"
	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

// Event is a real-time notification delivered to a user's open connections.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Publisher delivers events to a specific user.
type Publisher interface {
	SendToUser(ctx context.Context, userID uuid.UUID, eventType string, payload any) error
}

type client struct {
	userID uuid.UUID
	send   chan []byte
}

// Hub tracks open connections per user. All operations are safe for
// concurrent use.
type Hub struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]map[*client]struct{}
	logger *logging.Logger
}

// NewHub creates an empty connection hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		byUser: make(map[uuid.UUID]map[*client]struct{}),
		logger: logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[c.userID] == nil {
		h.byUser[c.userID] = make(map[*client]struct{})
	}
	h.byUser[c.userID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.byUser[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.byUser, c.userID)
	}
	close(c.send)
}

// SendToUser delivers an event to every open connection of the given user.
// Users with no open connection are skipped silently.
func (h *Hub) SendToUser(_ context.Context, userID uuid.UUID, eventType string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = data
	}
	message, err := json.Marshal(Event{Type: eventType, Timestamp: time.Now().UTC(), Data: raw})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		select {
		case c.send <- message:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
	return nil
}

// ConnectionCount returns how many connections the user currently holds.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades authenticated requests to WebSocket connections and
// registers them with the hub. The auth middleware must run first.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity.CallerFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		userID, err := uuid.Parse(caller.ID)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := &client{userID: userID, send: make(chan []byte, 256)}
		h.register(c)
		h.logger.Debug("websocket connected", "user_id", userID)

		go h.writePump(c, ws)
		go h.readPump(c, ws)
	}
}

// readPump drains inbound frames until the peer disconnects. Inbound
// payloads are ignored; the socket is notify-only.
func (h *Hub) readPump(c *client, ws *websocket.Conn) {
	defer func() {
		h.unregister(c)
		ws.Close()
	}()
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writePump(c *client, ws *websocket.Conn) {
	defer ws.Close()
	for message := range c.send {
		if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

// Ensure interface compliance
var _ Publisher = (*Hub)(nil)
