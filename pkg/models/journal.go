package models

import "time"

// ViolationKind classifies a journaled violation.
type ViolationKind string

const (
	ViolationBlockedProcess ViolationKind = "blocked_process"
	ViolationProcessKilled  ViolationKind = "process_killed"
	ViolationQuotaExhausted ViolationKind = "quota_exhausted"
	ViolationBedtime        ViolationKind = "bedtime"
	ViolationAccessBlocked  ViolationKind = "access_blocked"
	ViolationActionFailed   ViolationKind = "action_failed"
)

// Violation is one journaled enforcement event.
type Violation struct {
	Kind        ViolationKind `json:"kind"`
	AgentID     string        `json:"agent_id"`
	Hostname    string        `json:"hostname"`
	ProcessName string        `json:"process_name,omitempty"`
	Reason      string        `json:"reason"`
	Timestamp   time.Time     `json:"timestamp"`
}

// ActivityEvent is one journaled activity entry (non-violation).
type ActivityEvent struct {
	Kind      string    `json:"kind"`
	AgentID   string    `json:"agent_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
