package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/curaious/teamboard/internal/access"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity *access.Identity

	// guarded by hub.mu
	rooms map[string]struct{}

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, identity *access.Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		identity: identity,
		rooms:    make(map[string]struct{}),
		send:     make(chan []byte, sendBuffer),
	}
}

func (c *Client) enqueue(raw []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *Client) reply(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(raw)
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump handles room requests from the peer until the connection fails.
func (c *Client) readPump(ctx context.Context, authorizer Authorizer) {
	defer func() {
		c.hub.Remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Realtime connection failed", slog.String("user_id", c.identity.UserID.String()), slog.Any("error", err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(Message{Type: MessageError, Data: "malformed message"})
			continue
		}

		switch msg.Type {
		case MessagePing:
			c.reply(Message{Type: MessagePong})
		case MessageJoin:
			c.join(ctx, authorizer, msg.ProjectID)
		case MessageLeave:
			projectID, err := uuid.Parse(msg.ProjectID)
			if err != nil {
				c.reply(Message{Type: MessageError, ProjectID: msg.ProjectID, Data: "invalid project id"})
				continue
			}
			c.hub.Leave(ProjectRoom(projectID), c)
			c.reply(Message{Type: MessageLeft, ProjectID: msg.ProjectID})
		default:
			c.reply(Message{Type: MessageError, Data: "unknown message type"})
		}
	}
}

// join subscribes the client to a project room when the caller is an accepted member.
func (c *Client) join(ctx context.Context, authorizer Authorizer, rawID string) {
	projectID, err := uuid.Parse(rawID)
	if err != nil {
		c.reply(Message{Type: MessageError, ProjectID: rawID, Data: "invalid project id"})
		return
	}

	if err := authorizer.Authorize(ctx, c.identity, access.RouteProjectSubscribe, access.Project(projectID)); err != nil {
		c.reply(Message{Type: MessageError, ProjectID: rawID, Data: err.Error()})
		return
	}

	c.hub.Join(ProjectRoom(projectID), c)
	c.reply(Message{Type: MessageJoined, ProjectID: rawID})
}

// writePump drains the send queue to the peer and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
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
