package models

import "time"

// ProcessInfo is one observed process from the agent's process monitor.
type ProcessInfo struct {
	PID         int      `json:"pid"`
	Name        string   `json:"name"`
	Path        string   `json:"path,omitempty"`
	Type        string   `json:"type,omitempty"`
	Category    Category `json:"category,omitempty"`
	BrowserName string   `json:"browserName,omitempty"`
}

// BrowserInfo is a process identified as a web browser.
type BrowserInfo struct {
	PID         int    `json:"pid"`
	Name        string `json:"name"`
	BrowserName string `json:"browserName"`
}

// CategorySummary counts processes per category in one snapshot.
type CategorySummary struct {
	Games        int `json:"games"`
	Education    int `json:"education"`
	Productivity int `json:"productivity"`
	Internet     int `json:"internet"`
	Other        int `json:"other"`
}

// ProcessSnapshot is one process-monitor telemetry payload, enriched by the
// rule evaluator with browser and blocklist matches.
type ProcessSnapshot struct {
	Timestamp     time.Time       `json:"timestamp"`
	Hostname      string          `json:"hostname"`
	Platform      Platform        `json:"platform"`
	ProcessCount  int             `json:"processCount"`
	Browsers      []BrowserInfo   `json:"browsers"`
	BrowserActive bool            `json:"browserActive"`
	Processes     []ProcessInfo   `json:"processes"`
	Summary       CategorySummary `json:"summary"`
}

// HasBrowsers reports whether any browser process was observed. Internet
// time accrues only while this holds.
func (s *ProcessSnapshot) HasBrowsers() bool {
	return s != nil && len(s.Browsers) > 0
}

// SessionPayload is the wire shape produced by the session monitor script.
// Unknown fields are ignored; the core treats extra data as opaque.
type SessionPayload struct {
	Timestamp   time.Time `json:"timestamp"`
	Hostname    string    `json:"hostname"`
	Platform    Platform  `json:"platform"`
	Username    string    `json:"username"`
	SessionID   string    `json:"sessionId,omitempty"`
	SessionName string    `json:"sessionName,omitempty"`
	LoginTime   time.Time `json:"loginTime,omitempty"`
	IdleTime    int64     `json:"idleTime"` // milliseconds
	IsIdle      bool      `json:"isIdle"`
	Uptime      int64     `json:"uptime,omitempty"`
	SystemUser  bool      `json:"systemUser,omitempty"`
}
