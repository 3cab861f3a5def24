package api

import (
	"github.com/wardenhq/warden/pkg/supervisor"
)

// SupervisorCatchup replays recent supervisor state to fresh dashboard
// subscribers: violations for the violation channel, the agent roster for
// the session channel. Other channels are live-only.
type SupervisorCatchup struct {
	sup *supervisor.Supervisor
}

// NewSupervisorCatchup wraps a supervisor as a hub catchup source.
func NewSupervisorCatchup(sup *supervisor.Supervisor) *SupervisorCatchup {
	return &SupervisorCatchup{sup: sup}
}

// CatchupEvents returns history for a channel in chronological order.
func (s *SupervisorCatchup) CatchupEvents(channel string, limit int) []any {
	switch channel {
	case supervisor.ChannelViolation:
		violations := s.sup.Journal().Violations(limit)
		out := make([]any, 0, len(violations))
		// Violations come newest-first; replay oldest-first.
		for i := len(violations) - 1; i >= 0; i-- {
			out = append(out, violations[i])
		}
		return out

	case supervisor.ChannelSessionUpdate:
		agents := s.sup.Agents()
		out := make([]any, 0, len(agents))
		for _, a := range agents {
			out = append(out, a)
		}
		return out
	}
	return nil
}
