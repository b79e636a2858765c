package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is one WebSocket connection. A user may hold several at once
// (phone and browser), so clients carry their own connection id.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *EventHub
	mu     sync.Mutex
	closed bool
}

type event struct {
	userID  string
	payload []byte
}

// EventHub pushes server events (chat replies, story segments, plan changes)
// to each user's open connections.
type EventHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	events     chan event
	mu         sync.RWMutex
	log        zerolog.Logger
}

func NewEventHub(log zerolog.Logger) *EventHub {
	return &EventHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		events:     make(chan event, 1000),
		log:        log,
	}
}

// Run starts the hub's event loop.
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

func (h *EventHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.log.Debug().Str("client_id", client.ID).Str("user_id", client.UserID).
		Int("total", len(h.clients)).Msg("client connected")

	go client.writePump()
}

func (h *EventHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		h.log.Debug().Str("client_id", client.ID).Int("total", len(h.clients)).
			Msg("client disconnected")
	}
}

func (h *EventHub) deliver(ev event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID != ev.userID {
			continue
		}
		select {
		case client.Send <- ev.payload:
		default:
			// Send buffer full, the client is too slow; drop rather than block.
			h.log.Warn().Str("client_id", client.ID).Msg("client send buffer full")
		}
	}
}

// Publish queues an event for the user's connections. Never blocks: a full
// hub drops the event.
func (h *EventHub) Publish(userID, name string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": name,
		"data": data,
		"time": time.Now().Unix(),
	})
	if err != nil {
		h.log.Error().Err(err).Str("event", name).Msg("failed to marshal event")
		return
	}

	select {
	case h.events <- event{userID: userID, payload: payload}:
	default:
		h.log.Warn().Str("event", name).Msg("event channel full, dropping")
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump pumps events from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.mu.Lock()
			if !ok {
				// Hub closed the channel.
				c.closed = true
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.closed = true
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closed = true
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.Conn.Close()
}

// readPump discards inbound frames; events flow one way. Its job is to keep
// the read deadline fresh and unregister on close.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}
