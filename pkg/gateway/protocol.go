// Package gateway is the bi-directional transport to remote agents: it
// deploys monitor and action scripts, ingests telemetry, dispatches action
// requests, and surfaces online/offline transitions.
package gateway

import (
	"encoding/json"
	"time"

	"github.com/wardenhq/warden/pkg/models"
)

// Message types on the agent socket. Agents send hello, telemetry, and
// action_result; the core sends the rest.
const (
	msgHello         = "hello"
	msgWelcome       = "welcome"
	msgTelemetry     = "telemetry"
	msgActionResult  = "action_result"
	msgDeployMonitor = "deploy_monitor"
	msgUpdateMonitor = "update_monitor"
	msgRemoveMonitor = "remove_monitor"
	msgDeployAction  = "deploy_action"
	msgTriggerAction = "trigger_action"
)

// inboundMessage is the envelope for everything an agent sends. Type selects
// the variant; unknown fields are ignored.
type inboundMessage struct {
	Type string `json:"type"`

	// hello
	AgentID  string          `json:"agentId,omitempty"`
	Hostname string          `json:"hostname,omitempty"`
	Platform models.Platform `json:"platform,omitempty"`
	Version  string          `json:"version,omitempty"`

	// telemetry
	MonitorID string          `json:"monitorId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// action_result
	ActionID  string `json:"actionId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Success   bool   `json:"success,omitempty"`
	Error     string `json:"error,omitempty"`
}

// outboundMessage is the envelope for everything the core sends to an agent.
type outboundMessage struct {
	Type string `json:"type"`

	AgentID    string `json:"agentId,omitempty"`
	MonitorID  string `json:"monitorId,omitempty"`
	ActionID   string `json:"actionId,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	IntervalMs int64  `json:"intervalMs,omitempty"`
	Script     string `json:"script,omitempty"`

	Params map[string]any `json:"params,omitempty"`
}

// EventType tags a gateway event delivered to the supervisor.
type EventType string

const (
	// EventDiscovered fires on every agent hello, new or reconnecting.
	EventDiscovered EventType = "discovered"
	// EventTelemetry carries one monitor payload.
	EventTelemetry EventType = "telemetry"
	// EventActionResult carries an agent's asynchronous action response.
	EventActionResult EventType = "action_result"
	// EventOnline fires when a silent agent resumes sending.
	EventOnline EventType = "online"
	// EventOffline fires when an agent's telemetry gap crosses the offline
	// threshold or its socket closes.
	EventOffline EventType = "offline"
)

// Event is one gateway occurrence, routed to the supervisor's per-agent
// loops. Fields beyond Type and AgentID are variant-specific.
type Event struct {
	Type     EventType
	AgentID  string
	Hostname string
	Platform models.Platform

	MonitorID string
	Payload   json.RawMessage

	ActionID  string
	RequestID string
	Success   bool
	Error     string

	At time.Time
}

// Handler consumes gateway events. It is invoked from connection read loops
// and the offline scanner; implementations must not block.
type Handler func(Event)
