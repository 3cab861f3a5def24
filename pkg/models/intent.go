package models

// IntentKind tags an enforcement intent variant.
type IntentKind string

const (
	IntentWarning       IntentKind = "warning"
	IntentBlockProcess  IntentKind = "block_process"
	IntentBlockBrowsers IntentKind = "block_browsers"
	IntentLock          IntentKind = "lock"
	IntentLogout        IntentKind = "logout"
	IntentFocusApply    IntentKind = "focus_apply"
	IntentFocusClear    IntentKind = "focus_clear"
)

// Priority orders intents for same-tick tie-breaking:
// Logout > BlockBrowsers > BlockProcess > Warning.
func (k IntentKind) Priority() int {
	switch k {
	case IntentLogout:
		return 4
	case IntentBlockBrowsers:
		return 3
	case IntentBlockProcess, IntentLock:
		return 2
	case IntentWarning:
		return 1
	}
	return 0
}

// Urgency selects the agent notification channel for warnings.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// WarningScope names what a warning is about.
type WarningScope string

const (
	WarnComputer WarningScope = "computer"
	WarnInternet WarningScope = "internet"
	WarnBedtime  WarningScope = "bedtime"
)

// EnforcementIntent is a typed command from the planner to the dispatcher.
// Kind selects the variant; unrelated fields are zero.
type EnforcementIntent struct {
	Kind    IntentKind `json:"kind"`
	AgentID string     `json:"agent_id"`

	// Warning
	Scope            WarningScope `json:"scope,omitempty"`
	MinutesRemaining int          `json:"minutes_remaining,omitempty"`
	Urgency          Urgency      `json:"urgency,omitempty"`

	// BlockProcess
	PID         int    `json:"pid,omitempty"`
	ProcessName string `json:"process_name,omitempty"`

	// Logout / BlockProcess
	Reason       string `json:"reason,omitempty"`
	GraceSeconds int    `json:"grace_seconds,omitempty"`

	// FocusApply
	Profile *FocusProfile `json:"profile,omitempty"`
}
