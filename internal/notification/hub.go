package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stefans1510/fitness-shop/pkg/mylogger"
	"go.uber.org/zap"
)

// Notifier pushes a payload to whichever client is connected for the given
// user key. Sending to a user without a live connection is a silent no-op.
type Notifier interface {
	Send(ctx context.Context, userKey string, event string, payload any) error
}

// Hub upgrades /ws requests, tracks one connection per buyer email in the
// Registry and pushes order notifications to them.
type Hub struct {
	registry *Registry
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

// send is never closed; teardown closes done instead, so a Send racing a
// disconnect can never hit a closed channel.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*client),
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// ServeWS handles the websocket endpoint. The buyer identifies with an email
// query parameter; auth is handled upstream.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket connection", zap.Error(err))
		return
	}

	connectionID := uuid.New().String()

	c := &client{
		conn: conn,
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[connectionID] = c
	h.mu.Unlock()

	h.registry.Register(email, connectionID)

	go h.writePump(c)
	go h.readPump(email, connectionID, c)
}

func (h *Hub) Send(ctx context.Context, userKey string, event string, payload any) error {
	connectionID, ok := h.registry.ConnectionID(userKey)
	if !ok {
		return nil
	}

	h.mu.Lock()
	c, ok := h.clients[connectionID]
	h.mu.Unlock()
	if !ok {
		return nil
	}

	message, err := json.Marshal(map[string]any{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		return err
	}

	select {
	case c.send <- message:
	case <-c.done:
		// Client disconnected while the message was being prepared.
	default:
		mylogger.Warn(
			ctx,
			h.logger,
			"Dropping notification, client send buffer full",
			zap.String("user_key", userKey),
		)
	}

	return nil
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) readPump(email, connectionID string, c *client) {
	defer func() {
		h.dropClient(email, connectionID, c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) dropClient(email, connectionID string, c *client) {
	h.registry.Unregister(email, connectionID)

	h.mu.Lock()
	delete(h.clients, connectionID)
	h.mu.Unlock()

	close(c.done)
}
