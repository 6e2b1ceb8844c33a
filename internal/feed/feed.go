// Package feed broadcasts market events to WebSocket subscribers.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types published by the market.
const (
	TypeItemAdded  = "item_added"
	TypePriceAdded = "price_added"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
	broadcastQueue = 256
)

// Event is one message on the feed.
type Event struct {
	Type    string    `json:"type"`
	ItemID  int64     `json:"item_id"`
	Name    string    `json:"name,omitempty"`
	PriceID int64     `json:"price_id,omitempty"`
	Price   int64     `json:"price,omitempty"`
	At      time.Time `json:"at"`
}

// ItemAdded returns the event for a newly registered item.
func ItemAdded(itemID int64, name string) Event {
	return Event{Type: TypeItemAdded, ItemID: itemID, Name: name, At: time.Now().UTC()}
}

// PriceAdded returns the event for a newly recorded price observation.
func PriceAdded(itemID, priceID, price int64) Event {
	return Event{Type: TypePriceAdded, ItemID: itemID, PriceID: priceID, Price: price, At: time.Now().UTC()}
}

// Publisher accepts market events.
type Publisher interface {
	Publish(Event)
}

// Hub tracks connected clients and fans events out to them. Run must be
// called for registrations and broadcasts to be processed.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns a hub accepting WebSocket upgrades from allowedOrigins.
// An origin of "*" accepts any origin. Requests without an Origin header
// are always accepted.
func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:     logger.With("component", "feed"),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Run processes registrations and broadcasts until ctx is done, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client connected", "remote", c.conn.RemoteAddr().String())

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("client send buffer full, dropping event", "remote", c.conn.RemoteAddr().String())
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
	})
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("client disconnected", "remote", c.conn.RemoteAddr().String())
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues ev for every connected client. It never blocks; the
// event is dropped if the queue is full or the hub has stopped.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "type", ev.Type, "error", err)
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "type", ev.Type)
	}
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// readPump discards client messages and keeps the read deadline fresh
// until the connection fails.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
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
			return
		}
	}
}

// writePump delivers queued events and pings. It closes the connection
// when send is closed or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
