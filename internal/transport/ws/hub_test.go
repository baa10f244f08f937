package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/service"
)

func TestHubBroadcast(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(zap.NewNop())
	a := &Connection{StaffID: "a", Send: make(chan []byte, 4)}
	b := &Connection{StaffID: "b", Send: make(chan []byte, 4)}
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	hub.Broadcast(service.EventCrisisOpened, map[string]string{"participant_id": "5511"})

	for _, conn := range []*Connection{a, b} {
		select {
		case data := <-conn.Send:
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			assert.Equal(t, service.EventCrisisOpened, msg.Type)
			assert.JSONEq(t, `{"participant_id":"5511"}`, string(msg.Payload))
		case <-time.After(time.Second):
			t.Fatalf("no event for %s", conn.StaffID)
		}
	}

	hub.Unregister(a)
	_, open := <-a.Send
	assert.False(t, open)

	hub.Close()
	_, open = <-b.Send
	assert.False(t, open)
	assert.False(t, hub.Register(&Connection{Send: make(chan []byte, 1)}))
}

func TestMonitorWS(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	auth := service.NewAuthService(config.StaffConfig{Username: "admin", Password: "pw", JWTSecret: "k"})
	login, err := auth.Login("admin", "pw")
	require.NoError(t, err)

	hub := NewHub(zap.NewNop())
	h := NewHandler(hub, auth, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(h.MonitorWS))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bad", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+login.Token, nil)
	require.NoError(t, err)

	// the hub may register the connection after Dial returns
	received := make(chan Message, 1)
	go func() {
		var msg Message
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
		close(received)
	}()

	deadline := time.After(2 * time.Second)
	var got Message
loop:
	for {
		hub.Broadcast(service.EventSessionReset, map[string]string{"participant_id": "p1"})
		select {
		case msg, ok := <-received:
			require.True(t, ok)
			got = msg
			break loop
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("monitor received nothing")
		}
	}
	assert.Equal(t, service.EventSessionReset, got.Type)

	conn.Close()
	hub.Close()
	srv.Close()
}
