package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/models"
)

// ErrAgentUnavailable indicates the target agent has no live connection or
// the send failed. The owning intent is journaled as a failed action; no
// retries beyond the natural telemetry cadence.
var ErrAgentUnavailable = errors.New("agent unavailable")

// writeTimeout bounds each WebSocket send so one stuck agent cannot stall
// the caller.
const writeTimeout = 10 * time.Second

// offlineFactor times the monitor interval is the telemetry gap after which
// an agent is flagged offline.
const offlineFactor = 2

// agentConn is one live agent connection plus its liveness bookkeeping.
type agentConn struct {
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	hostname string
	platform models.Platform

	// lastSeen and online are guarded by the gateway mutex.
	lastSeen time.Time
	online   bool
}

// Gateway accepts agent WebSocket connections and exposes the deployment
// and action-dispatch contract. One instance per process.
type Gateway struct {
	mu    sync.RWMutex
	conns map[string]*agentConn

	handler  Handler
	settings func() config.Settings
	logger   *slog.Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a gateway reading the live monitor interval through
// settingsFn. handler receives every gateway event; it must not block.
func New(settingsFn func() config.Settings, handler Handler) (*Gateway, error) {
	if handler == nil {
		return nil, errors.New("gateway requires an event handler")
	}
	return &Gateway{
		conns:    make(map[string]*agentConn),
		handler:  handler,
		settings: settingsFn,
		logger:   slog.Default().With("component", "gateway"),
		stopped:  make(chan struct{}),
	}, nil
}

// Start launches the offline scanner. The scanner runs until ctx is
// cancelled or Stop is called.
func (g *Gateway) Start(ctx context.Context) {
	go g.scanLoop(ctx)
}

// Stop closes every agent connection and halts the scanner.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() { close(g.stopped) })

	g.mu.Lock()
	conns := make([]*agentConn, 0, len(g.conns))
	for _, ac := range g.conns {
		conns = append(conns, ac)
	}
	g.conns = make(map[string]*agentConn)
	g.mu.Unlock()

	for _, ac := range conns {
		ac.cancel()
		_ = ac.conn.Close(websocket.StatusGoingAway, "shutting down")
	}
}

// HandleAgentSocket upgrades an agent's HTTP request and runs its read loop
// until the connection closes. Mounted by the API server.
func (g *Gateway) HandleAgentSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Agents dial directly, not from a browser.
		InsecureSkipVerify: true,
	})
	if err != nil {
		g.logger.Warn("Agent WebSocket upgrade failed", "error", err)
		return
	}
	g.handleConnection(r.Context(), conn)
}

func (g *Gateway) handleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// The first message must be a hello.
	agentID, ac, err := g.awaitHello(ctx, conn, cancel)
	if err != nil {
		g.logger.Warn("Agent handshake failed", "error", err)
		_ = conn.Close(websocket.StatusProtocolError, "hello expected")
		return
	}
	defer g.dropConnection(agentID, ac)

	g.logger.Info("Agent connected",
		"agent_id", agentID, "hostname", ac.hostname, "platform", ac.platform)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.logger.Warn("Invalid agent message", "agent_id", agentID, "error", err)
			continue
		}
		g.touch(agentID, ac)

		switch msg.Type {
		case msgTelemetry:
			g.handler(Event{
				Type:      EventTelemetry,
				AgentID:   agentID,
				Hostname:  ac.hostname,
				Platform:  ac.platform,
				MonitorID: msg.MonitorID,
				Payload:   msg.Payload,
				At:        time.Now(),
			})
		case msgActionResult:
			g.handler(Event{
				Type:      EventActionResult,
				AgentID:   agentID,
				ActionID:  msg.ActionID,
				RequestID: msg.RequestID,
				Success:   msg.Success,
				Error:     msg.Error,
				Payload:   msg.Payload,
				At:        time.Now(),
			})
		case msgHello:
			// Repeated hello on an open socket: treat as a refresh.
		default:
			g.logger.Warn("Unknown agent message type",
				"agent_id", agentID, "type", msg.Type)
		}
	}
}

// awaitHello reads the handshake, assigns an id to first-time agents, and
// registers the connection. A second connection for the same agent id
// replaces the first.
func (g *Gateway) awaitHello(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) (string, *agentConn, error) {
	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()

	_, data, err := conn.Read(readCtx)
	if err != nil {
		return "", nil, fmt.Errorf("read hello: %w", err)
	}
	var hello inboundMessage
	if err := json.Unmarshal(data, &hello); err != nil || hello.Type != msgHello {
		return "", nil, fmt.Errorf("malformed hello")
	}
	if !hello.Platform.Valid() {
		return "", nil, fmt.Errorf("unsupported platform %q", hello.Platform)
	}

	agentID := hello.AgentID
	if agentID == "" {
		agentID = uuid.New().String()
	}

	ac := &agentConn{
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		hostname: hello.Hostname,
		platform: hello.Platform,
		lastSeen: time.Now(),
		online:   true,
	}

	g.mu.Lock()
	if prev, ok := g.conns[agentID]; ok {
		prev.cancel()
		_ = prev.conn.Close(websocket.StatusPolicyViolation, "superseded")
	}
	g.conns[agentID] = ac
	g.mu.Unlock()

	if err := g.send(ac, outboundMessage{Type: msgWelcome, AgentID: agentID}); err != nil {
		return "", nil, fmt.Errorf("send welcome: %w", err)
	}

	g.handler(Event{
		Type:     EventDiscovered,
		AgentID:  agentID,
		Hostname: hello.Hostname,
		Platform: hello.Platform,
		At:       time.Now(),
	})
	return agentID, ac, nil
}

func (g *Gateway) dropConnection(agentID string, ac *agentConn) {
	g.mu.Lock()
	wasOnline := false
	if cur, ok := g.conns[agentID]; ok && cur == ac {
		wasOnline = ac.online
		delete(g.conns, agentID)
	}
	g.mu.Unlock()

	ac.cancel()
	_ = ac.conn.Close(websocket.StatusNormalClosure, "")

	if wasOnline {
		g.handler(Event{Type: EventOffline, AgentID: agentID, At: time.Now()})
	}
}

// touch records inbound traffic and emits an online edge when a silent
// agent resumes.
func (g *Gateway) touch(agentID string, ac *agentConn) {
	g.mu.Lock()
	ac.lastSeen = time.Now()
	cameOnline := !ac.online
	ac.online = true
	g.mu.Unlock()

	if cameOnline {
		g.handler(Event{Type: EventOnline, AgentID: agentID, At: time.Now()})
	}
}

// scanLoop flags agents whose telemetry gap exceeds the offline threshold.
// Each offline edge is emitted once per transition.
func (g *Gateway) scanLoop(ctx context.Context) {
	interval := g.settings().MonitorInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopped:
			return
		case <-ticker.C:
			g.scanOnce(time.Now())
		}
	}
}

func (g *Gateway) scanOnce(now time.Time) {
	threshold := offlineFactor * g.settings().MonitorInterval()

	var offline []string
	g.mu.Lock()
	for id, ac := range g.conns {
		if ac.online && now.Sub(ac.lastSeen) > threshold {
			ac.online = false
			offline = append(offline, id)
		}
	}
	g.mu.Unlock()

	for _, id := range offline {
		g.logger.Warn("Agent went offline", "agent_id", id)
		g.handler(Event{Type: EventOffline, AgentID: id, At: now})
	}
}

// Connected reports whether the agent has a live, online connection.
func (g *Gateway) Connected(agentID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ac, ok := g.conns[agentID]
	return ok && ac.online
}

// ConnectedAgents returns the ids of all live connections.
func (g *Gateway) ConnectedAgents() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.conns))
	for id := range g.conns {
		out = append(out, id)
	}
	return out
}

// Platform returns the platform an agent reported at hello.
func (g *Gateway) Platform(agentID string) (models.Platform, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ac, ok := g.conns[agentID]
	if !ok {
		return "", false
	}
	return ac.platform, true
}

func (g *Gateway) lookup(agentID string) (*agentConn, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ac, ok := g.conns[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: no connection for agent %s", ErrAgentUnavailable, agentID)
	}
	return ac, nil
}

func (g *Gateway) send(ac *agentConn, msg outboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	writeCtx, cancel := context.WithTimeout(ac.ctx, writeTimeout)
	defer cancel()
	if err := ac.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	return nil
}

func (g *Gateway) sendTo(agentID string, msg outboundMessage) error {
	ac, err := g.lookup(agentID)
	if err != nil {
		return err
	}
	return g.send(ac, msg)
}

// DeployMonitor ships a monitor script to an agent. Deploying an already
// installed monitorID is an interval update agent-side.
func (g *Gateway) DeployMonitor(ctx context.Context, agentID, monitorID string, interval time.Duration) error {
	ac, err := g.lookup(agentID)
	if err != nil {
		return err
	}
	blob, err := MonitorScript(ac.platform, monitorID)
	if err != nil {
		return err
	}
	return g.send(ac, outboundMessage{
		Type:       msgDeployMonitor,
		MonitorID:  monitorID,
		IntervalMs: interval.Milliseconds(),
		Script:     blob,
	})
}

// UpdateMonitor changes a deployed monitor's cadence.
func (g *Gateway) UpdateMonitor(ctx context.Context, agentID, monitorID string, interval time.Duration) error {
	if !isMonitorID(monitorID) {
		return fmt.Errorf("unknown monitor: %q", monitorID)
	}
	return g.sendTo(agentID, outboundMessage{
		Type:       msgUpdateMonitor,
		MonitorID:  monitorID,
		IntervalMs: interval.Milliseconds(),
	})
}

// RemoveMonitor uninstalls a monitor from an agent.
func (g *Gateway) RemoveMonitor(ctx context.Context, agentID, monitorID string) error {
	if !isMonitorID(monitorID) {
		return fmt.Errorf("unknown monitor: %q", monitorID)
	}
	return g.sendTo(agentID, outboundMessage{Type: msgRemoveMonitor, MonitorID: monitorID})
}

// DeployAction ships an action script to an agent.
func (g *Gateway) DeployAction(ctx context.Context, agentID, actionID string) error {
	ac, err := g.lookup(agentID)
	if err != nil {
		return err
	}
	blob, err := ActionScript(ac.platform, actionID)
	if err != nil {
		return err
	}
	return g.send(ac, outboundMessage{Type: msgDeployAction, ActionID: actionID, Script: blob})
}

// TriggerAction asks an agent to run a deployed action. The call returns
// once the request is on the wire; the result arrives later as an
// action_result event echoing the returned request id.
func (g *Gateway) TriggerAction(ctx context.Context, agentID, actionID string, params map[string]any) (string, error) {
	if !isActionID(actionID) {
		return "", fmt.Errorf("unknown action: %q", actionID)
	}
	requestID := uuid.New().String()
	if err := g.sendTo(agentID, outboundMessage{
		Type:      msgTriggerAction,
		ActionID:  actionID,
		RequestID: requestID,
		Params:    params,
	}); err != nil {
		return "", err
	}
	return requestID, nil
}
