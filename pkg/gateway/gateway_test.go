package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/models"
)

func testSettings() func() config.Settings {
	s := config.DefaultSettings()
	return func() config.Settings { return s }
}

func TestScripts_AllPlatformsAndIDs(t *testing.T) {
	for _, platform := range []models.Platform{models.PlatformWindows, models.PlatformDarwin, models.PlatformLinux} {
		for _, id := range MonitorIDs {
			blob, err := MonitorScript(platform, id)
			require.NoError(t, err, "%s/%s", platform, id)
			assert.NotEmpty(t, blob)
		}
		for _, id := range ActionIDs {
			blob, err := ActionScript(platform, id)
			require.NoError(t, err, "%s/%s", platform, id)
			assert.NotEmpty(t, blob)
		}
	}
}

func TestScripts_RejectUnknown(t *testing.T) {
	_, err := MonitorScript(models.PlatformLinux, "keylogger")
	assert.Error(t, err)

	_, err = ActionScript(models.PlatformLinux, "session")
	assert.Error(t, err)

	_, err = MonitorScript("freebsd", "session")
	assert.Error(t, err)
}

func TestScripts_DialectMatchesPlatform(t *testing.T) {
	win, err := ActionScript(models.PlatformWindows, "kill")
	require.NoError(t, err)
	assert.Contains(t, win, "Stop-Process")

	lin, err := ActionScript(models.PlatformLinux, "kill")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(lin, "#!/bin/sh"))
}

type gatewayHarness struct {
	gateway *Gateway
	events  chan Event
	server  *httptest.Server
}

func newHarness(t *testing.T) *gatewayHarness {
	t.Helper()
	h := &gatewayHarness{events: make(chan Event, 32)}

	var err error
	h.gateway, err = New(testSettings(), func(e Event) { h.events <- e })
	require.NoError(t, err)

	h.server = httptest.NewServer(http.HandlerFunc(h.gateway.HandleAgentSocket))
	t.Cleanup(func() {
		h.gateway.Stop()
		h.server.Close()
	})
	return h
}

func (h *gatewayHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	return conn
}

func (h *gatewayHarness) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-h.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gateway event")
		return Event{}
	}
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHandshake_AssignsIDAndEmitsDiscovered(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "")

	sendJSON(t, conn, map[string]any{
		"type": "hello", "hostname": "family-pc", "platform": "linux",
	})

	welcome := readJSON(t, conn)
	assert.Equal(t, "welcome", welcome["type"])
	agentID, _ := welcome["agentId"].(string)
	require.NotEmpty(t, agentID)

	e := h.next(t)
	assert.Equal(t, EventDiscovered, e.Type)
	assert.Equal(t, agentID, e.AgentID)
	assert.Equal(t, "family-pc", e.Hostname)
	assert.Equal(t, models.PlatformLinux, e.Platform)
	assert.True(t, h.gateway.Connected(agentID))
}

func TestHandshake_KeepsPresentedID(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "")

	sendJSON(t, conn, map[string]any{
		"type": "hello", "agentId": "agent-7", "hostname": "h", "platform": "darwin",
	})

	welcome := readJSON(t, conn)
	assert.Equal(t, "agent-7", welcome["agentId"])
}

func TestTelemetryAndActionRoundTrip(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "")

	sendJSON(t, conn, map[string]any{
		"type": "hello", "agentId": "a1", "hostname": "h", "platform": "linux",
	})
	readJSON(t, conn)
	h.next(t) // discovered

	sendJSON(t, conn, map[string]any{
		"type": "telemetry", "monitorId": "session",
		"payload": map[string]any{"username": "timmy", "isIdle": false},
	})
	e := h.next(t)
	require.Equal(t, EventTelemetry, e.Type)
	assert.Equal(t, "session", e.MonitorID)
	assert.Contains(t, string(e.Payload), "timmy")

	// Core → agent: trigger an action, agent answers asynchronously.
	reqID, err := h.gateway.TriggerAction(context.Background(), "a1", "warn", map[string]any{"title": "T"})
	require.NoError(t, err)
	require.NotEmpty(t, reqID)
	trigger := readJSON(t, conn)
	assert.Equal(t, "trigger_action", trigger["type"])
	assert.Equal(t, "warn", trigger["actionId"])
	assert.Equal(t, reqID, trigger["requestId"])

	sendJSON(t, conn, map[string]any{
		"type": "action_result", "actionId": "warn",
		"requestId": trigger["requestId"], "success": true,
	})
	e = h.next(t)
	require.Equal(t, EventActionResult, e.Type)
	assert.True(t, e.Success)
	assert.Equal(t, "warn", e.ActionID)
}

func TestDeployMonitor_SendsPlatformScript(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "")

	sendJSON(t, conn, map[string]any{
		"type": "hello", "agentId": "a1", "hostname": "h", "platform": "win32",
	})
	readJSON(t, conn)
	h.next(t)

	require.NoError(t, h.gateway.DeployMonitor(context.Background(), "a1", "process", 30*time.Second))

	deploy := readJSON(t, conn)
	assert.Equal(t, "deploy_monitor", deploy["type"])
	assert.Equal(t, "process", deploy["monitorId"])
	assert.Equal(t, float64(30000), deploy["intervalMs"])
	assert.Contains(t, deploy["script"], "Get-Process")
}

func TestTriggerAction_UnknownAgent(t *testing.T) {
	h := newHarness(t)
	_, err := h.gateway.TriggerAction(context.Background(), "ghost", "lock", nil)
	assert.True(t, errors.Is(err, ErrAgentUnavailable))
}

func TestOfflineScan_FlagsSilentAgentOnce(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	defer conn.Close(websocket.StatusNormalClosure, "")

	sendJSON(t, conn, map[string]any{
		"type": "hello", "agentId": "a1", "hostname": "h", "platform": "linux",
	})
	readJSON(t, conn)
	h.next(t)

	// Push lastSeen past the offline threshold without waiting.
	h.gateway.mu.Lock()
	h.gateway.conns["a1"].lastSeen = time.Now().Add(-10 * time.Minute)
	h.gateway.mu.Unlock()

	h.gateway.scanOnce(time.Now())
	e := h.next(t)
	assert.Equal(t, EventOffline, e.Type)
	assert.False(t, h.gateway.Connected("a1"))

	// The edge fires once per transition.
	h.gateway.scanOnce(time.Now())
	select {
	case e := <-h.events:
		t.Fatalf("unexpected second event: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}

	// Fresh traffic brings the agent back online.
	sendJSON(t, conn, map[string]any{
		"type": "telemetry", "monitorId": "session", "payload": map[string]any{},
	})
	e = h.next(t)
	assert.Equal(t, EventOnline, e.Type)
	e = h.next(t)
	assert.Equal(t, EventTelemetry, e.Type)
}
