package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/internal/common"
)

func newWSServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, err := strconv.ParseUint(r.URL.Query().Get("uid"), 10, 64); err == nil {
			r = r.WithContext(common.WithUserID(r.Context(), uid))
		}
		hub.ServeWS(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, uid uint64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?uid=" + strconv.FormatUint(uid, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_DeliversToTargetConnections(t *testing.T) {
	hub := NewHub()
	srv := newWSServer(t, hub)

	first := dialWS(t, srv, 2)
	second := dialWS(t, srv, 2)
	other := dialWS(t, srv, 3)
	require.Eventually(t, func() bool { return hub.Connected(2) == 2 && hub.Connected(3) == 1 }, 2*time.Second, 10*time.Millisecond)

	err := hub.Update(context.Background(), Event{
		ID:             "e1",
		Name:           EventMessageCreated,
		MessageID:      10,
		ConversationID: 5,
		Targets:        []uint64{2},
		Payload:        map[string]interface{}{"body": "hello"},
	})
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, EventMessageCreated, got["event"])
		assert.Equal(t, float64(10), got["message_id"])
		assert.NotContains(t, got, "targets")
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := newWSServer(t, hub)

	conn := dialWS(t, srv, 9)
	require.Eventually(t, func() bool { return hub.Connected(9) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	require.Eventually(t, func() bool { return hub.Connected(9) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsAnonymous(t *testing.T) {
	hub := NewHub()
	srv := newWSServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub()
	srv := newWSServer(t, hub)

	conn := dialWS(t, srv, 4)
	require.Eventually(t, func() bool { return hub.Connected(4) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Connected(4))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
