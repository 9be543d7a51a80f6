package realtime

import (
	"testing"

	json "github.com/bytedance/sonic"
	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(hub *Hub) *Client {
	return newClient(hub, nil, &access.Identity{UserID: uuid.New(), Email: "a@example.com"})
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func TestHub_PublishReachesProjectRoom(t *testing.T) {
	hub := NewHub()
	projectID := uuid.New()

	member := testClient(hub)
	outsider := testClient(hub)
	hub.Join(ProjectRoom(projectID), member)
	hub.Join(ProjectRoom(uuid.New()), outsider)

	hub.Publish(notify.Event{ProjectID: projectID, Title: "Task created", Action: notify.ActionCreated})

	msgs := drain(member)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageEvent, msgs[0].Type)
	assert.Equal(t, projectID.String(), msgs[0].ProjectID)

	assert.Empty(t, drain(outsider))
}

func TestHub_PublishDeliversOncePerClient(t *testing.T) {
	hub := NewHub()
	projectID := uuid.New()

	c := testClient(hub)
	hub.Join(ProjectRoom(projectID), c)
	hub.Join(UserRoom(c.identity.UserID), c)

	hub.Publish(notify.Event{ProjectID: projectID, UserID: c.identity.UserID, Action: notify.ActionUpdated})

	assert.Len(t, drain(c), 1)
}

func TestHub_InviteeGetsEventWithoutJoiningProject(t *testing.T) {
	hub := NewHub()

	invitee := testClient(hub)
	hub.Join(UserRoom(invitee.identity.UserID), invitee)

	hub.Publish(notify.Event{ProjectID: uuid.New(), UserID: invitee.identity.UserID, Action: notify.ActionCreated})

	assert.Len(t, drain(invitee), 1)
}

func TestHub_LeaveAndRemove(t *testing.T) {
	hub := NewHub()
	projectID := uuid.New()
	room := ProjectRoom(projectID)

	c := testClient(hub)
	hub.Join(room, c)
	hub.Join(UserRoom(c.identity.UserID), c)
	assert.Equal(t, 1, hub.RoomSize(room))

	hub.Leave(room, c)
	assert.Equal(t, 0, hub.RoomSize(room))
	assert.Equal(t, 0, hub.Broadcast(Message{Type: MessageEvent}, room))

	hub.Remove(c)
	hub.Remove(c)
	assert.Equal(t, 0, hub.RoomSize(UserRoom(c.identity.UserID)))

	_, ok := <-c.send
	assert.False(t, ok)
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	hub := NewHub()
	room := ProjectRoom(uuid.New())

	slow := testClient(hub)
	hub.Join(room, slow)

	for i := 0; i < sendBuffer; i++ {
		require.Equal(t, 1, hub.Broadcast(Message{Type: MessageEvent}, room))
	}

	assert.Equal(t, 0, hub.Broadcast(Message{Type: MessageEvent}, room))
	assert.Equal(t, 0, hub.RoomSize(room))
	assert.Len(t, drain(slow), sendBuffer)
}
