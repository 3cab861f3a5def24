package supervisor

import (
	"fmt"
	"time"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/models"
)

// Command handlers run on the target agent's loop via call, so they
// interleave with telemetry in arrival order and never race the per-agent
// state.

// LinkAgent binds an agent to a child. The current session's username, if
// any and not parental, is implicitly mapped to the child so the binding
// takes effect without a relogin.
func (s *Supervisor) LinkAgent(agentID, childID string) error {
	if childID == "" {
		return fmt.Errorf("%w: child id required", ErrChildNotFound)
	}
	return s.call(agentID, func() error {
		s.mu.Lock()
		agent, ok := s.agents[agentID]
		if !ok {
			s.mu.Unlock()
			return ErrAgentNotFound
		}
		if _, ok := s.children[childID]; !ok {
			s.children[childID] = &models.ChildConfig{ID: childID}
		}
		agent.ChildID = childID
		var username string
		if agent.CurrentSession != nil && !agent.CurrentSession.Parental {
			username = agent.CurrentSession.Username
		}
		s.mu.Unlock()

		if username != "" {
			s.tracker.SetMapping(agentID, username, childID)
		}
		s.logger.Info("Agent linked", "agent_id", agentID, "child_id", childID)
		s.journal.AddActivity(models.ActivityEvent{
			Kind: "agent_linked", AgentID: agentID,
			Message: "agent linked to child " + childID, Timestamp: time.Now(),
		})
		s.persist()
		s.broadcastAgent(agentID)
		return nil
	})
}

// UnlinkAgent removes the child binding and cancels any pending enforcement
// for the agent. Telemetry continues; no intents are produced while unbound.
func (s *Supervisor) UnlinkAgent(agentID string) error {
	return s.call(agentID, func() error {
		s.mu.Lock()
		agent, ok := s.agents[agentID]
		if !ok {
			s.mu.Unlock()
			return ErrAgentNotFound
		}
		agent.ChildID = ""
		s.mu.Unlock()

		s.planner.Release(agentID)
		s.logger.Info("Agent unlinked", "agent_id", agentID)
		s.persist()
		s.broadcastAgent(agentID)
		return nil
	})
}

// SetAgentEnabled toggles monitoring for an agent. Disabling cancels all
// pending enforcement.
func (s *Supervisor) SetAgentEnabled(agentID string, enabled bool) error {
	return s.call(agentID, func() error {
		s.mu.Lock()
		agent, ok := s.agents[agentID]
		if !ok {
			s.mu.Unlock()
			return ErrAgentNotFound
		}
		agent.Enabled = enabled
		s.mu.Unlock()

		if !enabled {
			s.planner.Release(agentID)
		}
		s.persist()
		s.broadcastAgent(agentID)
		return nil
	})
}

// SetUserMapping maps an OS username on an agent to a child id. An empty
// childID clears the mapping.
func (s *Supervisor) SetUserMapping(agentID, username, childID string) error {
	if username == "" {
		return &config.ValidationError{Field: "username", Err: fmt.Errorf("%w: username required", config.ErrMissingRequiredField)}
	}
	return s.call(agentID, func() error {
		s.mu.Lock()
		_, ok := s.agents[agentID]
		if ok && childID != "" {
			if _, have := s.children[childID]; !have {
				s.children[childID] = &models.ChildConfig{ID: childID}
			}
		}
		s.mu.Unlock()
		if !ok {
			return ErrAgentNotFound
		}

		s.tracker.SetMapping(agentID, username, childID)
		s.persist()
		return nil
	})
}

// SetParentAccounts replaces the agent's parent account list. Sessions for
// these usernames are tracked but never enforced.
func (s *Supervisor) SetParentAccounts(agentID string, usernames []string) error {
	return s.call(agentID, func() error {
		s.mu.RLock()
		_, ok := s.agents[agentID]
		s.mu.RUnlock()
		if !ok {
			return ErrAgentNotFound
		}

		s.tracker.SetParents(agentID, usernames)
		s.persist()
		return nil
	})
}

// UpdateChild replaces a child's enforcement configuration. Cached oracle
// verdicts are dropped and pending enforcement for bound agents is
// cancelled so the new rules apply from the next telemetry.
func (s *Supervisor) UpdateChild(cfg *models.ChildConfig) error {
	if cfg == nil || cfg.ID == "" {
		return fmt.Errorf("%w: child id required", ErrChildNotFound)
	}
	s.mu.Lock()
	s.children[cfg.ID] = cfg.Clone()
	s.mu.Unlock()

	if s.invalidator != nil {
		s.invalidator.Invalidate(cfg.ID)
	}
	s.OnOracleStateChange(cfg.ID)
	s.logger.Info("Child configuration updated", "child_id", cfg.ID)
	s.persist()
	return nil
}

// DeleteChild removes a child configuration. Agents bound to it become
// unbound.
func (s *Supervisor) DeleteChild(childID string) error {
	s.mu.Lock()
	if _, ok := s.children[childID]; !ok {
		s.mu.Unlock()
		return ErrChildNotFound
	}
	delete(s.children, childID)
	var affected []string
	for id, agent := range s.agents {
		if agent.ChildID == childID {
			agent.ChildID = ""
			affected = append(affected, id)
		}
	}
	s.mu.Unlock()

	for _, agentID := range affected {
		s.planner.Release(agentID)
	}
	s.persist()
	return nil
}

// UpdateSettings applies a partial settings update. An invalid resulting
// configuration is rejected whole. An interval change is pushed to every
// connected agent's monitors.
func (s *Supervisor) UpdateSettings(patch config.SettingsPatch) (config.Settings, error) {
	s.mu.Lock()
	next := patch.Apply(s.settings)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return config.Settings{}, err
	}
	intervalChanged := next.MonitorIntervalMs != s.settings.MonitorIntervalMs
	s.settings = next
	var agentIDs []string
	if intervalChanged {
		for id := range s.agents {
			agentIDs = append(agentIDs, id)
		}
	}
	s.mu.Unlock()

	if intervalChanged && s.gw != nil {
		interval := next.MonitorInterval()
		for _, id := range agentIDs {
			if !s.gw.Connected(id) {
				continue
			}
			for _, m := range []string{"session", "process"} {
				if err := s.gw.UpdateMonitor(s.runCtx, id, m, interval); err != nil {
					s.logger.Warn("Monitor interval update failed",
						"agent_id", id, "monitor_id", m, "error", err)
				}
			}
		}
	}
	s.logger.Info("Settings updated", "monitor_interval_ms", next.MonitorIntervalMs)
	s.persist()
	return next, nil
}

// ForceLogout logs the agent's session out immediately, bypassing the grace
// ladder. Pending timers are cancelled first so a queued quota logout does
// not double-fire.
func (s *Supervisor) ForceLogout(agentID, reason string) error {
	if reason == "" {
		reason = "forced by parent"
	}
	return s.call(agentID, func() error {
		s.mu.RLock()
		agent, ok := s.agents[agentID]
		hostname := ""
		if ok {
			hostname = agent.Hostname
		}
		s.mu.RUnlock()
		if !ok {
			return ErrAgentNotFound
		}

		s.planner.Release(agentID)
		if err := s.dispatcher.Execute(s.runCtx, models.EnforcementIntent{
			Kind:    models.IntentLogout,
			AgentID: agentID,
			Reason:  reason,
		}); err != nil {
			return err
		}
		s.journal.AddActivity(models.ActivityEvent{
			Kind: "forced_logout", AgentID: agentID,
			Message: "forced logout on " + hostname + ": " + reason, Timestamp: time.Now(),
		})
		return nil
	})
}

// LockAgent locks the agent's screen without ending the session.
func (s *Supervisor) LockAgent(agentID string) error {
	return s.call(agentID, func() error {
		s.mu.RLock()
		_, ok := s.agents[agentID]
		s.mu.RUnlock()
		if !ok {
			return ErrAgentNotFound
		}

		if err := s.dispatcher.Execute(s.runCtx, models.EnforcementIntent{
			Kind:    models.IntentLock,
			AgentID: agentID,
		}); err != nil {
			return err
		}
		s.journal.AddActivity(models.ActivityEvent{
			Kind: "screen_locked", AgentID: agentID,
			Message: "screen locked by parent", Timestamp: time.Now(),
		})
		return nil
	})
}

// ApplyFocus activates focus mode on an agent using the child's configured
// focusMode profile; a non-nil override takes its place. childID defaults
// to the agent's binding. Re-applying an identical profile is a no-op.
func (s *Supervisor) ApplyFocus(agentID, childID string, override *models.FocusProfile) error {
	return s.call(agentID, func() error {
		s.mu.Lock()
		agent, ok := s.agents[agentID]
		if !ok {
			s.mu.Unlock()
			return ErrAgentNotFound
		}
		if childID == "" {
			childID = agent.ChildID
		}
		if childID == "" {
			s.mu.Unlock()
			return ErrMissingBinding
		}
		profile := override
		if profile == nil {
			child, have := s.children[childID]
			if !have {
				s.mu.Unlock()
				return ErrChildNotFound
			}
			if child.FocusMode == nil {
				s.mu.Unlock()
				return &config.ValidationError{
					Field: "focusMode",
					Err:   fmt.Errorf("%w: child %s has no focus profile configured", config.ErrMissingRequiredField, childID),
				}
			}
			profile = child.Clone().FocusMode
		}
		if s.focus[agentID].Equal(profile) {
			s.mu.Unlock()
			return nil
		}
		s.focus[agentID] = profile
		agent.FocusActive = true
		agent.FocusChildID = childID
		s.mu.Unlock()

		s.logger.Info("Focus mode applied", "agent_id", agentID, "child_id", childID)
		s.journal.AddActivity(models.ActivityEvent{
			Kind: "focus_applied", AgentID: agentID,
			Message: "focus mode applied", Timestamp: time.Now(),
		})
		s.broadcastAgent(agentID)
		return nil
	})
}

// ClearFocus deactivates focus mode. Clearing when inactive is a no-op.
func (s *Supervisor) ClearFocus(agentID string) error {
	return s.call(agentID, func() error {
		s.mu.Lock()
		agent, ok := s.agents[agentID]
		if !ok {
			s.mu.Unlock()
			return ErrAgentNotFound
		}
		if _, active := s.focus[agentID]; !active {
			s.mu.Unlock()
			return nil
		}
		delete(s.focus, agentID)
		agent.FocusActive = false
		agent.FocusChildID = ""
		s.mu.Unlock()

		s.logger.Info("Focus mode cleared", "agent_id", agentID)
		s.journal.AddActivity(models.ActivityEvent{
			Kind: "focus_cleared", AgentID: agentID,
			Message: "focus mode cleared", Timestamp: time.Now(),
		})
		s.broadcastAgent(agentID)
		return nil
	})
}

// ClearViolations empties the violation journal.
func (s *Supervisor) ClearViolations() {
	s.journal.ClearViolations()
	s.persist()
}

// UserMappings returns the tracker's mapping table for the API layer.
func (s *Supervisor) UserMappings() map[string]map[string]string {
	return s.tracker.Mappings()
}

// ParentAccounts returns per-agent parent account lists.
func (s *Supervisor) ParentAccounts() map[string][]string {
	return s.tracker.ParentAccounts()
}
