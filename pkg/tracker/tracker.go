// Package tracker maintains the active OS session per agent and resolves
// usernames to children through per-agent user mappings and parent-account
// lists.
package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/models"
)

// Tracker holds user mappings and parent accounts for all agents. Session
// records themselves live on the Agent; the tracker computes transitions.
type Tracker struct {
	mu       sync.RWMutex
	mappings map[string]map[string]string // agent id → username → child id
	parents  map[string]map[string]bool   // agent id → parent usernames
	logger   *slog.Logger
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		mappings: make(map[string]map[string]string),
		parents:  make(map[string]map[string]bool),
		logger:   slog.Default().With("component", "session-tracker"),
	}
}

// Update is the outcome of applying one session telemetry payload.
type Update struct {
	// Session is the agent's (possibly new) current session.
	Session *models.Session
	// ChildID is the monitored child for this session, empty for parental
	// sessions and unbound agents.
	ChildID string
	// Ended is the prior session when the username changed, nil otherwise.
	// Usage for Ended must be flushed to EndedChildID before any further
	// accounting.
	Ended        *models.Session
	EndedChildID string
}

// Apply folds a session payload into the agent record. Exactly one session
// exists per agent: a username change closes the prior session cleanly.
// Must be called from the agent's single writer.
func (t *Tracker) Apply(agent *models.Agent, payload models.SessionPayload, now time.Time) Update {
	var update Update

	prior := agent.CurrentSession
	if prior != nil && prior.Username != payload.Username {
		update.Ended = prior
		update.EndedChildID = t.Resolve(agent, prior.Username)
		t.logger.Info("Session ended",
			"agent_id", agent.ID, "username", prior.Username, "next", payload.Username)
	}

	sess := &models.Session{
		Username:    payload.Username,
		SessionID:   payload.SessionID,
		SessionName: payload.SessionName,
		LoginTime:   payload.LoginTime,
		IdleMillis:  payload.IdleTime,
		IsIdle:      payload.IsIdle,
		Parental:    t.IsParent(agent.ID, payload.Username),
		UpdatedAt:   now,
	}
	if prior != nil && prior.Username == payload.Username {
		sess.StartedAt = prior.StartedAt
	} else {
		sess.StartedAt = now
	}
	agent.CurrentSession = sess

	update.Session = sess
	if !sess.Parental {
		update.ChildID = t.Resolve(agent, payload.Username)
	}
	return update
}

// Resolve returns the child monitored for a username on an agent: the
// explicit user mapping when present, otherwise the agent's bound child.
// Parent-listed usernames resolve to nothing.
func (t *Tracker) Resolve(agent *models.Agent, username string) string {
	if t.IsParent(agent.ID, username) {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m, ok := t.mappings[agent.ID]; ok {
		if childID, ok := m[username]; ok {
			return childID
		}
	}
	return agent.ChildID
}

// IsParent reports whether a username is on the agent's parent list.
func (t *Tracker) IsParent(agentID, username string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parents[agentID][username]
}

// SetMapping maps a username to a child on an agent. An empty childID
// clears the mapping.
func (t *Tracker) SetMapping(agentID, username, childID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if childID == "" {
		delete(t.mappings[agentID], username)
		return
	}
	if t.mappings[agentID] == nil {
		t.mappings[agentID] = make(map[string]string)
	}
	t.mappings[agentID][username] = childID
}

// SetParents replaces the agent's parent-account list.
func (t *Tracker) SetParents(agentID string, usernames []string) {
	set := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		set[u] = true
	}
	t.mu.Lock()
	t.parents[agentID] = set
	t.mu.Unlock()
}

// Parents returns the agent's parent-account list.
func (t *Tracker) Parents(agentID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.parents[agentID]))
	for u := range t.parents[agentID] {
		out = append(out, u)
	}
	return out
}

// Mappings returns a deep copy of all user mappings for persistence.
func (t *Tracker) Mappings() map[string]map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]map[string]string, len(t.mappings))
	for agentID, m := range t.mappings {
		cp := make(map[string]string, len(m))
		for u, c := range m {
			cp[u] = c
		}
		out[agentID] = cp
	}
	return out
}

// ParentAccounts returns a copy of all parent lists for persistence.
func (t *Tracker) ParentAccounts() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string][]string, len(t.parents))
	for agentID, set := range t.parents {
		var list []string
		for u := range set {
			list = append(list, u)
		}
		out[agentID] = list
	}
	return out
}

// Restore replaces mappings and parent lists from persisted state.
func (t *Tracker) Restore(mappings map[string]map[string]string, parents map[string][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mappings = make(map[string]map[string]string)
	for agentID, m := range mappings {
		cp := make(map[string]string, len(m))
		for u, c := range m {
			cp[u] = c
		}
		t.mappings[agentID] = cp
	}
	t.parents = make(map[string]map[string]bool)
	for agentID, list := range parents {
		set := make(map[string]bool, len(list))
		for _, u := range list {
			set[u] = true
		}
		t.parents[agentID] = set
	}
}
