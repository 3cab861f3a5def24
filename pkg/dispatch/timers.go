// Package dispatch turns enforcement intents into agent actions and owns
// the pending-timer table for delayed enforcement (grace logouts, repeat
// warnings).
package dispatch

import (
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/models"
)

type timerKey struct {
	AgentID string
	Kind    models.IntentKind
}

type timerHandle struct {
	timer    *time.Timer
	deadline time.Time
}

// TimerTable holds at most one pending timer per (agent, intent kind).
// Arming a key cancels any timer already pending for it.
type TimerTable struct {
	mu     sync.Mutex
	timers map[timerKey]*timerHandle
}

// NewTimerTable returns an empty timer table.
func NewTimerTable() *TimerTable {
	return &TimerTable{timers: make(map[timerKey]*timerHandle)}
}

// Arm schedules fn to run at deadline, replacing any pending timer for the
// same (agent, kind). fn runs on a timer goroutine; callers route it back
// into the owning agent's loop.
func (t *TimerTable) Arm(agentID string, kind models.IntentKind, deadline time.Time, fn func()) {
	key := timerKey{AgentID: agentID, Kind: kind}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.timers[key]; ok {
		prev.timer.Stop()
		delete(t.timers, key)
	}

	h := &timerHandle{deadline: deadline}
	h.timer = time.AfterFunc(time.Until(deadline), func() {
		// A Stop that races the firing leaves the callback running: only
		// the handle still registered under the key may proceed.
		t.mu.Lock()
		current, ok := t.timers[key]
		if ok && current == h {
			delete(t.timers, key)
		}
		t.mu.Unlock()
		if !ok || current != h {
			return
		}
		fn()
	})
	t.timers[key] = h
}

// ArmIfEarlier arms a timer only when no pending timer for the key has an
// equal or earlier deadline. Returns false when the existing timer stands.
func (t *TimerTable) ArmIfEarlier(agentID string, kind models.IntentKind, deadline time.Time, fn func()) bool {
	t.mu.Lock()
	prev, ok := t.timers[timerKey{AgentID: agentID, Kind: kind}]
	if ok && !prev.deadline.After(deadline) {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()

	t.Arm(agentID, kind, deadline, fn)
	return true
}

// Cancel stops a pending timer, reporting whether one was pending.
func (t *TimerTable) Cancel(agentID string, kind models.IntentKind) bool {
	key := timerKey{AgentID: agentID, Kind: kind}

	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.timers[key]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(t.timers, key)
	return true
}

// CancelAgent stops every pending timer for an agent. Used when the agent
// goes offline or its session ends.
func (t *TimerTable) CancelAgent(agentID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for key, h := range t.timers {
		if key.AgentID != agentID {
			continue
		}
		h.timer.Stop()
		delete(t.timers, key)
		n++
	}
	return n
}

// Deadline returns the pending deadline for a key.
func (t *TimerTable) Deadline(agentID string, kind models.IntentKind) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.timers[timerKey{AgentID: agentID, Kind: kind}]
	if !ok {
		return time.Time{}, false
	}
	return h.deadline, true
}

// Pending reports whether a timer is armed for the key.
func (t *TimerTable) Pending(agentID string, kind models.IntentKind) bool {
	_, ok := t.Deadline(agentID, kind)
	return ok
}
