// Package streaming broadcasts live trading events over WebSocket: every
// signal, trade, game update and status snapshot the loop produces, for
// dashboards and tailing tools. Slow clients are dropped, never waited on.
package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// EventType tags a streamed event.
type EventType string

const (
	EventSignal    EventType = "signal"
	EventTrade     EventType = "trade"
	EventGame      EventType = "game"
	EventQuote     EventType = "quote"
	EventStatus    EventType = "status"
	EventError     EventType = "error"
	EventHeartbeat EventType = "heartbeat"
)

// allEvents is the default subscription set for a new client.
var allEvents = []EventType{
	EventSignal, EventTrade, EventGame, EventQuote,
	EventStatus, EventError, EventHeartbeat,
}

// Event is one message on the stream.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"ts"`
	Data      any       `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	heartbeatEvery = 30 * time.Second
	maxMessageSize = 512
)

// Hub fans events out to connected WebSocket clients.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subMu sync.RWMutex
	subs  map[EventType]bool
}

// NewHub returns an idle hub; Run starts it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run owns the client set until ctx ends, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("clients", n).Msg("ws client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("clients", n).Msg("ws client disconnected")

		case ev := <-h.broadcast:
			h.fanOut(ev)

		case <-heartbeat.C:
			h.fanOut(Event{
				Type:      EventHeartbeat,
				Timestamp: time.Now().UTC(),
				Data:      map[string]int{"clients": h.ClientCount()},
			})
		}
	}
}

func (h *Hub) fanOut(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", string(ev.Type)).Msg("marshal stream event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.subscribed(ev.Type) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Backed-up client; cut it loose rather than stall the loop.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Broadcast queues an event for every subscribed client. Drops the event
// when the queue is full; the stream is best-effort.
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- ev:
	default:
		log.Warn().Str("type", string(ev.Type)).Msg("stream queue full, event dropped")
	}
}

// BroadcastSignal streams an emitted signal.
func (h *Hub) BroadcastSignal(sig any) {
	h.Broadcast(Event{Type: EventSignal, Data: sig})
}

// BroadcastTrade streams an open or close trade record.
func (h *Hub) BroadcastTrade(trade any) {
	h.Broadcast(Event{Type: EventTrade, Data: trade})
}

// BroadcastGame streams a live game snapshot.
func (h *Hub) BroadcastGame(game any) {
	h.Broadcast(Event{Type: EventGame, Data: game})
}

// BroadcastQuote streams one market quote with the model's opinion.
func (h *Hub) BroadcastQuote(ticker string, price, fairValue, edge int) {
	h.Broadcast(Event{Type: EventQuote, Data: map[string]any{
		"ticker":     ticker,
		"price":      price,
		"fair_value": fairValue,
		"edge":       edge,
	}})
}

// BroadcastStatus streams a session status snapshot.
func (h *Hub) BroadcastStatus(status any) {
	h.Broadcast(Event{Type: EventStatus, Data: status})
}

// BroadcastError streams a non-fatal error with its context.
func (h *Hub) BroadcastError(err error, where string) {
	h.Broadcast(Event{Type: EventError, Data: map[string]string{
		"error": err.Error(),
		"where": where,
	}})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request and attaches the client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		subs: make(map[EventType]bool, len(allEvents)),
	}
	for _, ev := range allEvents {
		c.subs[ev] = true
	}

	h.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *client) subscribed(ev EventType) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subs[ev]
}

// readPump consumes subscribe/unsubscribe messages until the peer hangs
// up, keeping the read deadline fresh off pongs.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("ws read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *client) handleMessage(message []byte) {
	var msg struct {
		Type   string   `json:"type"`
		Events []string `json:"events"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subMu.Lock()
		for _, ev := range msg.Events {
			c.subs[EventType(ev)] = true
		}
		c.subMu.Unlock()
	case "unsubscribe":
		c.subMu.Lock()
		for _, ev := range msg.Events {
			delete(c.subs, EventType(ev))
		}
		c.subMu.Unlock()
	}
}

// writePump drains the send queue to the peer and pings on idle.
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce whatever else is queued into the same frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
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
