package realtime

import (
	"log/slog"
	"sync"

	json "github.com/bytedance/sonic"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/google/uuid"
)

type MessageType string

const (
	MessageJoin   MessageType = "join"
	MessageLeave  MessageType = "leave"
	MessagePing   MessageType = "ping"
	MessagePong   MessageType = "pong"
	MessageJoined MessageType = "joined"
	MessageLeft   MessageType = "left"
	MessageEvent  MessageType = "event"
	MessageError  MessageType = "error"
)

// Message is a single frame exchanged with a websocket client.
type Message struct {
	Type      MessageType `json:"type"`
	ProjectID string      `json:"project_id,omitempty"`
	Data      any         `json:"data,omitempty"`
}

func ProjectRoom(projectID uuid.UUID) string { return "project_" + projectID.String() }
func UserRoom(userID uuid.UUID) string { return "user_" + userID.String() }

// Hub keeps the room memberships of connected clients.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[room]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[room] = clients
	}
	clients[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(room, c)
}

func (h *Hub) leave(room string, c *Client) {
	delete(c.rooms, room)

	clients, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, room)
	}
}

// Remove drops c from every room and closes its send queue.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	for room := range c.rooms {
		h.leave(room, c)
	}
	h.mu.Unlock()

	c.close()
}

// RoomSize returns the number of clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends msg once to every client in any of rooms and returns how many clients got
// it. Clients whose queue is full are disconnected.
func (h *Hub) Broadcast(msg Message, rooms ...string) int {
	raw, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Unable to encode realtime message", slog.Any("error", err))
		return 0
	}

	h.mu.RLock()
	targets := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for c := range targets {
		if c.enqueue(raw) {
			delivered++
			continue
		}
		slog.Warn("Realtime client too slow, disconnecting", slog.String("user_id", c.identity.UserID.String()))
		h.Remove(c)
	}

	return delivered
}

// Publish relays a committed mutation to the project room and to the user it is about.
func (h *Hub) Publish(event notify.Event) {
	rooms := []string{ProjectRoom(event.ProjectID)}
	if event.UserID != uuid.Nil {
		rooms = append(rooms, UserRoom(event.UserID))
	}

	h.Broadcast(Message{
		Type:      MessageEvent,
		ProjectID: event.ProjectID.String(),
		Data:      event,
	}, rooms...)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make(map[*Client]struct{})
	for _, room := range h.rooms {
		for c := range room {
			clients[c] = struct{}{}
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
