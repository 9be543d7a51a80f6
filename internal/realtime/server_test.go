package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	identity *access.Identity
}

func (v fakeVerifier) VerifyAccessToken(token string) (*access.Identity, error) {
	if token != "good" {
		return nil, access.ErrUnauthenticated
	}
	return v.identity, nil
}

type fakeAuthorizer struct {
	members map[uuid.UUID]bool
}

func (a fakeAuthorizer) Authorize(_ context.Context, _ *access.Identity, route access.RouteID, ref access.ResourceRef) error {
	if route != access.RouteProjectSubscribe {
		return access.ErrInsufficientRights
	}
	if !a.members[ref.ID()] {
		return access.ErrInsufficientRights
	}
	return nil
}

func newTestServer(t *testing.T, members ...uuid.UUID) (*Server, *httptest.Server, *access.Identity) {
	t.Helper()

	identity := &access.Identity{UserID: uuid.New(), Email: "owner@example.com"}
	allowed := make(map[uuid.UUID]bool)
	for _, id := range members {
		allowed[id] = true
	}

	s := NewServer("", []string{"*"}, fakeVerifier{identity: identity}, fakeAuthorizer{members: allowed}, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown(context.Background())
	})

	return s, ts, identity
}

func dial(t *testing.T, ts *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_RejectsMissingToken(t *testing.T) {
	_, ts, _ := newTestServer(t)

	_, resp, err := dial(t, ts, "bad")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_JoinAndReceiveEvents(t *testing.T) {
	projectID := uuid.New()
	s, ts, _ := newTestServer(t, projectID)

	conn, _, err := dial(t, ts, "good")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: MessageJoin, ProjectID: projectID.String()}))
	joined := readMessage(t, conn)
	assert.Equal(t, MessageJoined, joined.Type)

	s.Hub().Publish(notify.Event{ProjectID: projectID, Title: "Project updated", Action: notify.ActionUpdated})

	event := readMessage(t, conn)
	assert.Equal(t, MessageEvent, event.Type)
	assert.Equal(t, projectID.String(), event.ProjectID)
}

func TestServer_JoinDeniedForNonMember(t *testing.T) {
	projectID := uuid.New()
	s, ts, _ := newTestServer(t)

	conn, _, err := dial(t, ts, "good")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: MessageJoin, ProjectID: projectID.String()}))
	reply := readMessage(t, conn)
	assert.Equal(t, MessageError, reply.Type)
	assert.Equal(t, 0, s.Hub().RoomSize(ProjectRoom(projectID)))
}

func TestServer_PingPong(t *testing.T) {
	_, ts, _ := newTestServer(t)

	conn, _, err := dial(t, ts, "good")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: MessagePing}))
	assert.Equal(t, MessagePong, readMessage(t, conn).Type)
}

func TestServer_UserRoomJoinedOnConnect(t *testing.T) {
	s, ts, identity := newTestServer(t)

	conn, _, err := dial(t, ts, "good")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.Hub().RoomSize(UserRoom(identity.UserID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Hub().Publish(notify.Event{ProjectID: uuid.New(), UserID: identity.UserID, Title: "Invitation sent", Action: notify.ActionCreated})
	assert.Equal(t, MessageEvent, readMessage(t, conn).Type)
}
