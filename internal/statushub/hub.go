// Package statushub pushes sync status to websocket clients.
package statushub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ashaai/fieldsync/internal/logging"
	"github.com/ashaai/fieldsync/internal/store"
	syncpkg "github.com/ashaai/fieldsync/internal/sync"
	"github.com/ashaai/fieldsync/internal/uuid"
)

// Event types.
const (
	EventSyncStatus    = "sync.status"
	EventSyncStarted   = "sync.started"
	EventSyncCompleted = "sync.completed"
	EventConnectivity  = "connectivity.changed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Envelope wraps all websocket messages.
type Envelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Client is one websocket connection.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu         sync.RWMutex
	subscriptions map[string]bool
}

// wants reports whether the client should receive eventType. A client with
// no subscriptions receives everything.
func (c *Client) wants(eventType string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

type message struct {
	eventType string
	payload   []byte
	// to restricts delivery to one client.
	to *Client
}

// Hub maintains active client connections and broadcasts messages.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	statusMu   sync.Mutex
	lastStatus *store.Status

	done     chan struct{}
	upgrader websocket.Upgrader
	log      *logging.Logger
}

var _ syncpkg.Observer = (*Hub)(nil)

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan message, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logging.OrDefault(log).With(map[string]interface{}{"component": "statushub"}),
	}
}

// Run manages client connections and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client connected", map[string]interface{}{"client_id": c.id, "total": total})
			if data := h.currentStatus(); data != nil {
				c.send <- h.encode(EventSyncStatus, data)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client disconnected", map[string]interface{}{"client_id": c.id, "total": total})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				if msg.to != nil && msg.to != c {
					continue
				}
				if msg.to == nil && !c.wants(msg.eventType) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// Slow client.
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) encode(eventType string, data map[string]interface{}) []byte {
	bytes, err := json.Marshal(Envelope{Type: eventType, Data: data, Timestamp: time.Now().Unix()})
	if err != nil {
		h.log.Error("Failed to marshal message", err)
		return nil
	}
	return bytes
}

// Broadcast sends a message to all subscribed clients. It never blocks; a
// message is dropped when the hub is backed up.
func (h *Hub) Broadcast(eventType string, data map[string]interface{}) {
	payload := h.encode(eventType, data)
	if payload == nil {
		return
	}
	select {
	case h.broadcast <- message{eventType: eventType, payload: payload}:
	default:
		h.log.Warn("Broadcast buffer full, dropping message", map[string]interface{}{"type": eventType})
	}
}

// =====================================================
// Sync status
// =====================================================

// Watch publishes sync.status whenever the store's status changes. The
// current status is sent to clients as they connect. The returned func stops
// watching.
func (h *Hub) Watch(st *store.Store) (stop func()) {
	status := st.Snapshot().Status()
	h.statusMu.Lock()
	h.lastStatus = &status
	h.statusMu.Unlock()
	return st.Subscribe(func(s store.State) {
		h.PublishStatus(s.Status())
	})
}

// PublishStatus broadcasts status if it differs from the last one sent.
func (h *Hub) PublishStatus(status store.Status) {
	h.statusMu.Lock()
	if h.lastStatus != nil && *h.lastStatus == status {
		h.statusMu.Unlock()
		return
	}
	h.lastStatus = &status
	h.statusMu.Unlock()

	h.Broadcast(EventSyncStatus, statusData(status))
}

func (h *Hub) currentStatus() map[string]interface{} {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	if h.lastStatus == nil {
		return nil
	}
	return statusData(*h.lastStatus)
}

func statusData(s store.Status) map[string]interface{} {
	return map[string]interface{}{
		"isOnline":  s.IsOnline,
		"isSyncing": s.IsSyncing,
		"pending":   s.Pending,
	}
}

// =====================================================
// Event broadcasters
// =====================================================

// DrainStarted notifies clients that a drain pass started.
func (h *Hub) DrainStarted(pending int) {
	h.Broadcast(EventSyncStarted, map[string]interface{}{
		"pending": pending,
		"status":  "started",
	})
}

// DrainCompleted notifies clients that a drain pass finished.
func (h *Hub) DrainCompleted(r *syncpkg.DrainResult) {
	h.Broadcast(EventSyncCompleted, map[string]interface{}{
		"succeeded":  r.Succeeded,
		"conflicts":  r.Conflicts,
		"retried":    r.Retried,
		"dropped":    r.Dropped,
		"reconciled": r.Reconciled,
		"duration":   r.Duration.Milliseconds(), // milliseconds
		"status":     "completed",
	})
}

// ConnectivityChanged notifies clients of an online flip.
func (h *Hub) ConnectivityChanged(online bool) {
	h.Broadcast(EventConnectivity, map[string]interface{}{"isOnline": online})
}

// =====================================================
// Connections
// =====================================================

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &Client{
		id:            uuid.New(),
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		hub:           h,
		subscriptions: make(map[string]bool),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

type clientMessage struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

// readPump handles subscribe, unsubscribe and ping actions.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("Read error", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.subMu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.subMu.Unlock()
			c.reply(map[string]interface{}{"action": "subscribe_ack", "subscribed": msg.Events})
		case "unsubscribe":
			c.subMu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.subMu.Unlock()
		case "ping":
			c.reply(map[string]interface{}{"action": "pong"})
		}
	}
}

// reply routes a direct message through the hub, which owns c.send.
func (c *Client) reply(v map[string]interface{}) {
	v["timestamp"] = time.Now().Unix()
	bytes, _ := json.Marshal(v)
	select {
	case c.hub.broadcast <- message{payload: bytes, to: c}:
	case <-c.hub.done:
	}
}

// writePump pumps messages to the websocket connection.
func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
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
