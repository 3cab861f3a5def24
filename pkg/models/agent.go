// Package models defines the core data records shared across the control
// plane: agents, children, sessions, process snapshots, usage cells,
// oracle verdicts, enforcement intents, and journal entries.
package models

import "time"

// Platform identifies the operating system of a remote agent.
type Platform string

const (
	PlatformWindows Platform = "win32"
	PlatformDarwin  Platform = "darwin"
	PlatformLinux   Platform = "linux"
)

// Valid reports whether p is one of the supported platform tags.
func (p Platform) Valid() bool {
	switch p {
	case PlatformWindows, PlatformDarwin, PlatformLinux:
		return true
	}
	return false
}

// Agent is the control-plane record for one remote agent installation.
// CurrentSession and ChildID are optional: a freshly discovered agent has
// neither a session nor a binding.
type Agent struct {
	ID       string    `json:"id"`
	Hostname string    `json:"hostname"`
	Platform Platform  `json:"platform"`
	Online   bool      `json:"online"`
	Enabled  bool      `json:"enabled"`
	LastSeen time.Time `json:"last_seen"`

	// ChildID is the bound child, empty when unbound. Bindings persist
	// across reconnects.
	ChildID string `json:"child_id,omitempty"`

	// CurrentSession is the active OS session, nil before the first
	// session telemetry arrives.
	CurrentSession *Session `json:"current_session,omitempty"`

	// FocusActive marks an active focus-mode profile on this agent.
	FocusActive  bool   `json:"focus_active,omitempty"`
	FocusChildID string `json:"focus_child_id,omitempty"`

	// DeployedMonitors is the manifest of monitor scripts installed on the
	// agent, keyed by monitor id.
	DeployedMonitors map[string]DeployedMonitor `json:"deployed_monitors,omitempty"`
}

// DeployedMonitor records one installed monitor script and its interval.
type DeployedMonitor struct {
	MonitorID  string        `json:"monitor_id"`
	Interval   time.Duration `json:"interval"`
	DeployedAt time.Time     `json:"deployed_at"`
}

// Clone returns a deep copy safe to hand to readers outside the per-agent
// writer.
func (a *Agent) Clone() *Agent {
	cp := *a
	if a.CurrentSession != nil {
		sess := *a.CurrentSession
		cp.CurrentSession = &sess
	}
	if a.DeployedMonitors != nil {
		cp.DeployedMonitors = make(map[string]DeployedMonitor, len(a.DeployedMonitors))
		for k, v := range a.DeployedMonitors {
			cp.DeployedMonitors[k] = v
		}
	}
	return &cp
}

// Session is the current OS session on an agent. Exactly one session exists
// per agent at any time; a username change closes the prior session.
type Session struct {
	Username    string    `json:"username"`
	SessionID   string    `json:"session_id,omitempty"`
	SessionName string    `json:"session_name,omitempty"`
	LoginTime   time.Time `json:"login_time,omitempty"`
	IdleMillis  int64     `json:"idle_millis"`
	IsIdle      bool      `json:"is_idle"`

	// Parental marks a session whose username is listed in the agent's
	// parent accounts. Parental sessions are tracked but never produce
	// enforcement intents.
	Parental bool `json:"parental"`

	// StartedAt is when this control plane first observed the session.
	StartedAt time.Time `json:"started_at"`
	// UpdatedAt is the timestamp of the most recent session telemetry.
	UpdatedAt time.Time `json:"updated_at"`
}
