package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatchup struct {
	events map[string][]any
}

func (s *staticCatchup) CatchupEvents(channel string, limit int) []any {
	return s.events[channel]
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		hub.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, strings.Replace(srv.URL, "http", "ws", 1), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendMessage(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestHub_ConnectionEstablished(t *testing.T) {
	hub := NewHub(nil, time.Second)
	conn := dialHub(t, hub)

	msg := readMessage(t, conn)

	assert.Equal(t, "connection.established", msg["type"])
	assert.NotEmpty(t, msg["connection_id"])
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(nil, time.Second)
	conn := dialHub(t, hub)
	readMessage(t, conn) // connection.established

	sendMessage(t, conn, clientMessage{Action: "subscribe", Channel: "osViolation"})
	msg := readMessage(t, conn)
	require.Equal(t, "subscription.confirmed", msg["type"])

	hub.Broadcast("osViolation", map[string]string{"kind": "bedtime"})

	msg = readMessage(t, conn)
	assert.Equal(t, "event", msg["type"])
	assert.Equal(t, "osViolation", msg["channel"])
	payload, ok := msg["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bedtime", payload["kind"])
}

func TestHub_BroadcastIgnoresUnsubscribedChannels(t *testing.T) {
	hub := NewHub(nil, time.Second)
	conn := dialHub(t, hub)
	readMessage(t, conn)

	sendMessage(t, conn, clientMessage{Action: "subscribe", Channel: "osViolation"})
	readMessage(t, conn) // confirmed

	hub.Broadcast("osSessionUpdate", map[string]string{"hostname": "family-pc"})
	hub.Broadcast("osViolation", map[string]string{"kind": "quota_exhausted"})

	// Only the subscribed channel's event arrives.
	msg := readMessage(t, conn)
	assert.Equal(t, "osViolation", msg["channel"])
}

func TestHub_SubscribeReplaysCatchup(t *testing.T) {
	catchup := &staticCatchup{events: map[string][]any{
		"osViolation": {
			map[string]string{"kind": "bedtime"},
			map[string]string{"kind": "quota_exhausted"},
		},
	}}
	hub := NewHub(catchup, time.Second)
	conn := dialHub(t, hub)
	readMessage(t, conn)

	sendMessage(t, conn, clientMessage{Action: "subscribe", Channel: "osViolation"})
	readMessage(t, conn) // confirmed

	first := readMessage(t, conn)
	second := readMessage(t, conn)
	assert.Equal(t, "catchup", first["type"])
	assert.Equal(t, "bedtime", first["payload"].(map[string]any)["kind"])
	assert.Equal(t, "quota_exhausted", second["payload"].(map[string]any)["kind"])
}

func TestHub_Ping(t *testing.T) {
	hub := NewHub(nil, time.Second)
	conn := dialHub(t, hub)
	readMessage(t, conn)

	sendMessage(t, conn, clientMessage{Action: "ping"})

	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil, time.Second)
	conn := dialHub(t, hub)
	readMessage(t, conn)

	sendMessage(t, conn, clientMessage{Action: "subscribe", Channel: "osViolation"})
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.subscriberCount("osViolation") == 1 },
		time.Second, 5*time.Millisecond)

	sendMessage(t, conn, clientMessage{Action: "unsubscribe", Channel: "osViolation"})
	require.Eventually(t, func() bool { return hub.subscriberCount("osViolation") == 0 },
		time.Second, 5*time.Millisecond)
}
