package models

import "time"

// ActivityKind distinguishes the two accounted activities.
type ActivityKind string

const (
	ActivityComputer ActivityKind = "computer"
	ActivityInternet ActivityKind = "internet"
)

// UsageCell accumulates one (agent, child, activity) counter. All forward
// motion is event-driven: cells advance only when telemetry arrives.
type UsageCell struct {
	AgentID  string       `json:"agent_id"`
	ChildID  string       `json:"child_id"`
	Activity ActivityKind `json:"activity"`

	AccumulatedSeconds int64     `json:"accumulated_seconds"`
	LastAdvanceAt      time.Time `json:"last_advance_at"`

	// WarningsFired holds the warning thresholds (minutes) already emitted
	// today. Cleared on daily rollover.
	WarningsFired map[int]bool `json:"warnings_fired,omitempty"`
}

// FireWarning marks a threshold as emitted for the current day and reports
// whether this call was the first to fire it.
func (c *UsageCell) FireWarning(threshold int) bool {
	if c.WarningsFired == nil {
		c.WarningsFired = make(map[int]bool)
	}
	if c.WarningsFired[threshold] {
		return false
	}
	c.WarningsFired[threshold] = true
	return true
}

// ResetDay zeroes the accumulator and clears fired warnings. Called when the
// first telemetry of a new local day arrives.
func (c *UsageCell) ResetDay() {
	c.AccumulatedSeconds = 0
	c.WarningsFired = nil
}

// OracleVerdict is the external service's answer for one (child, activity)
// pair. The oracle is authoritative: when Banned or !Allowed, local
// accumulators are irrelevant to the decision.
type OracleVerdict struct {
	ChildID          string       `json:"child_id"`
	Activity         ActivityKind `json:"activity"`
	Allowed          bool         `json:"allowed"`
	Banned           bool         `json:"banned"`
	RemainingSeconds int          `json:"remaining_seconds"`
	AsOf             time.Time    `json:"as_of"`
}
