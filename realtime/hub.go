// Package realtime pushes change events to browsers over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mabdi59/tournapro/events"
	"github.com/Mabdi59/tournapro/metrics"
)

// LobbyRoom receives every event regardless of tournament.
const LobbyRoom = "lobby"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Message is the wire format the front end reads.
type Message struct {
	Type    events.Type   `json:"type"`
	Action  events.Action `json:"action,omitempty"`
	Payload any           `json:"payload"`
}

// RoomForTournament names the room a tournament's viewers join.
func RoomForTournament(tournamentID int) string {
	return "tournament_" + strconv.Itoa(tournamentID)
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string

	closeOnce sync.Once
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		logger:     logger,
		metrics:    m,
	}
}

// Run handles registrations until ctx is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]struct{})
			}
			h.rooms[client.room][client] = struct{}{}
			size := len(h.rooms[client.room])
			h.mu.Unlock()
			h.metrics.WebSocketClients.Inc()
			h.logger.Debug("websocket client joined", slog.String("room", client.room), slog.Int("clients", size))

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for room, clients := range h.rooms {
				for c := range clients {
					c.closeSend()
					h.metrics.WebSocketClients.Dec()
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	client.closeSend()
	delete(clients, client)
	h.metrics.WebSocketClients.Dec()
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

// ClientCount reports how many clients are in room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastToRoom sends message to every client in the room. A client whose
// buffer is full misses the message instead of slowing the others down.
func (h *Hub) BroadcastToRoom(room string, message any) {
	body, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to encode websocket message", slog.String("room", room), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		select {
		case client.send <- body:
		default:
			h.metrics.EventsDropped.WithLabelValues("websocket").Inc()
			h.logger.Warn("websocket client buffer full, dropping message", slog.String("room", room))
		}
	}
}

// HandleEvent is an events.Handler: each event goes to its tournament's room
// and to the lobby.
func (h *Hub) HandleEvent(_ context.Context, e events.Event) {
	msg := Message{Type: e.Type, Action: e.Action, Payload: e.Payload}
	if e.TournamentID != 0 {
		h.BroadcastToRoom(RoomForTournament(e.TournamentID), msg)
	}
	h.BroadcastToRoom(LobbyRoom, msg)
}

// Attach registers conn in room and starts its pumps. It returns false when
// the hub has already stopped.
func (h *Hub) Attach(conn *websocket.Conn, room string) bool {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		room: room,
	}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return false
	}

	go client.writePump()
	go client.readPump()
	return true
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump only watches for the connection going away; clients never send
// anything the server acts on.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read failed", slog.String("room", c.room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Хаб закрыл канал.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One frame per message; the front end parses each frame as JSON.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
