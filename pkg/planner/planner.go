// Package planner converts oracle verdicts, usage accumulators, rule
// matches, and overrides into a deduplicated stream of enforcement intents,
// and drives the per-agent enforcement state machine.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/dispatch"
	"github.com/wardenhq/warden/pkg/journal"
	"github.com/wardenhq/warden/pkg/models"
	"github.com/wardenhq/warden/pkg/oracle"
)

// killSuppressWindow keeps a kill for the same pid from being re-dispatched
// while the agent's next snapshot may still show the dying process.
const killSuppressWindow = 30 * time.Second

// Phase is the per-agent enforcement state.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseWarning      Phase = "warning"
	PhaseGracePending Phase = "grace_pending"
	PhaseLoggingOut   Phase = "logging_out"
)

// agentState is the planner's mutable record for one agent. phase is read
// and written under the planner mutex; recentKills is touched only from the
// agent's event loop.
type agentState struct {
	phase       Phase
	recentKills map[int]time.Time
}

// VerdictSource answers quota questions, serving cached verdicts with a
// freshness marker. Implemented by the oracle client.
type VerdictSource interface {
	CheckCached(ctx context.Context, childID string, activity models.ActivityKind) (models.OracleVerdict, oracle.Freshness, error)
}

// Executor carries out a single intent against an agent. Implemented by the
// dispatcher.
type Executor interface {
	Execute(ctx context.Context, intent models.EnforcementIntent) error
}

// RouteFunc re-enters a timer-fired intent into the owning agent's event
// loop for ordered processing.
type RouteFunc func(intent models.EnforcementIntent)

// Planner owns enforcement decisions. All mutating entry points for one
// agent are called from that agent's single event loop, except the grace
// timer, which fires on its own goroutine. The internal mutex therefore
// guards the state map and every phase access.
type Planner struct {
	verdicts VerdictSource
	executor Executor
	timers   *dispatch.TimerTable
	journal  *journal.Journal
	settings func() config.Settings
	route    RouteFunc
	logger   *slog.Logger

	mu     sync.Mutex
	states map[string]*agentState
}

// New creates a planner. route receives intents produced by fired
// prediction timers and must hand them back to Commit on the agent's loop.
func New(verdicts VerdictSource, executor Executor, timers *dispatch.TimerTable, jrnl *journal.Journal, settingsFn func() config.Settings, route RouteFunc) *Planner {
	return &Planner{
		verdicts: verdicts,
		executor: executor,
		timers:   timers,
		journal:  jrnl,
		settings: settingsFn,
		route:    route,
		logger:   slog.Default().With("component", "planner"),
		states:   make(map[string]*agentState),
	}
}

// stateLocked returns the agent's record, creating it on first use. The
// caller must hold p.mu.
func (p *Planner) stateLocked(agentID string) *agentState {
	st, ok := p.states[agentID]
	if !ok {
		st = &agentState{phase: PhaseIdle, recentKills: make(map[int]time.Time)}
		p.states[agentID] = st
	}
	return st
}

func (p *Planner) state(agentID string) *agentState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked(agentID)
}

// Phase returns the agent's current enforcement phase.
func (p *Planner) Phase(agentID string) Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked(agentID).phase
}

func (p *Planner) setPhase(agentID string, ph Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stateLocked(agentID).phase = ph
}

// transition moves the agent from one phase to another, reporting whether
// the move happened.
func (p *Planner) transition(agentID string, from, to Phase) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stateLocked(agentID)
	if st.phase != from {
		return false
	}
	st.phase = to
	return true
}

// QuotaInput is one quota evaluation request for an active, non-parental
// session.
type QuotaInput struct {
	AgentID      string
	Hostname     string
	ChildID      string
	ComputerCell *models.UsageCell
	Browsers     []models.BrowserInfo
	Now          time.Time
}

// PlanQuota evaluates computer and internet quotas against the oracle and
// returns the resulting intents. Ladder warnings are marked fired on the
// usage cell here so each threshold fires at most once per day. Stale
// verdicts defer all new decisions; already-armed timers keep running.
func (p *Planner) PlanQuota(ctx context.Context, in QuotaInput) []models.EnforcementIntent {
	s := p.settings()

	verdict, freshness, err := p.verdicts.CheckCached(ctx, in.ChildID, models.ActivityComputer)
	if err != nil {
		p.logger.Warn("Quota check failed, deferring enforcement",
			"agent_id", in.AgentID, "child_id", in.ChildID, "error", err)
		return nil
	}
	if freshness == oracle.Stale {
		p.logger.Warn("Quota verdict stale, deferring new enforcement",
			"agent_id", in.AgentID, "child_id", in.ChildID, "as_of", verdict.AsOf)
		return nil
	}

	if verdict.Banned || !verdict.Allowed {
		return []models.EnforcementIntent{{
			Kind:         models.IntentLogout,
			AgentID:      in.AgentID,
			Reason:       "access blocked",
			GraceSeconds: int(s.GracePeriod() / time.Second),
		}}
	}

	var intents []models.EnforcementIntent
	remaining := verdict.RemainingSeconds

	for _, t := range s.WarningTimes {
		if remaining > (t-1)*60 && remaining <= t*60 {
			if in.ComputerCell != nil && in.ComputerCell.FireWarning(t) {
				intents = append(intents, warningIntent(in.AgentID, models.WarnComputer, t))
			}
		}
	}

	switch {
	case remaining <= 0:
		intents = append(intents, models.EnforcementIntent{
			Kind:         models.IntentLogout,
			AgentID:      in.AgentID,
			Reason:       "computer time exhausted",
			GraceSeconds: int(s.GracePeriod() / time.Second),
		})
	case remaining <= 3600:
		p.armPredictions(in.AgentID, remaining, s, in.Now)
	}

	if len(in.Browsers) > 0 {
		internet, fr, err := p.verdicts.CheckCached(ctx, in.ChildID, models.ActivityInternet)
		if err == nil && fr != oracle.Stale && !internet.Allowed {
			intents = append(intents, models.EnforcementIntent{
				Kind:    models.IntentBlockBrowsers,
				AgentID: in.AgentID,
				Reason:  "internet time exhausted",
			})
		}
	}
	return intents
}

// armPredictions schedules per-threshold warnings and the exhaustion logout
// from the most recent remaining-time estimate. Re-arming replaces the
// previous prediction set; the logout deadline only moves earlier.
func (p *Planner) armPredictions(agentID string, remaining int, s config.Settings, now time.Time) {
	for _, t := range s.WarningTimes {
		threshold := t
		if remaining <= threshold*60 {
			continue
		}
		at := now.Add(time.Duration(remaining-threshold*60) * time.Second)
		p.timers.Arm(agentID, warnTimerKind(threshold), at, func() {
			p.route(warningIntent(agentID, models.WarnComputer, threshold))
		})
	}

	deadline := now.Add(time.Duration(remaining) * time.Second)
	grace := int(s.GracePeriod() / time.Second)
	p.timers.ArmIfEarlier(agentID, models.IntentLogout, deadline, func() {
		p.route(models.EnforcementIntent{
			Kind:         models.IntentLogout,
			AgentID:      agentID,
			Reason:       "computer time exhausted",
			GraceSeconds: grace,
		})
	})
}

func warnTimerKind(threshold int) models.IntentKind {
	return models.IntentKind(fmt.Sprintf("warning_%dm", threshold))
}

func warningIntent(agentID string, scope models.WarningScope, minutes int) models.EnforcementIntent {
	urgency := models.UrgencyNormal
	if minutes <= 5 {
		urgency = models.UrgencyCritical
	}
	return models.EnforcementIntent{
		Kind:             models.IntentWarning,
		AgentID:          agentID,
		Scope:            scope,
		MinutesRemaining: minutes,
		Urgency:          urgency,
	}
}

// CommitInput carries one batch of intents for an agent plus the context
// needed for dedup and journaling.
type CommitInput struct {
	AgentID  string
	Hostname string
	Browsers []models.BrowserInfo
	Intents  []models.EnforcementIntent
	Now      time.Time
}

// Commit applies dedup and the state machine, then dispatches. A Logout is
// never executed directly: it becomes an immediate critical warning plus a
// grace timer, with at most one pending logout per agent (the earlier
// deadline wins).
func (p *Planner) Commit(ctx context.Context, in CommitInput) {
	st := p.state(in.AgentID)

	for _, intent := range in.Intents {
		switch intent.Kind {
		case models.IntentWarning:
			if err := p.executor.Execute(ctx, intent); err == nil {
				p.transition(in.AgentID, PhaseIdle, PhaseWarning)
			}

		case models.IntentBlockProcess:
			p.commitKill(ctx, st, in, intent)

		case models.IntentBlockBrowsers:
			p.commitBlockBrowsers(ctx, in, intent)

		case models.IntentLock:
			_ = p.executor.Execute(ctx, intent)

		case models.IntentLogout:
			p.commitLogout(ctx, in, intent)
		}
	}
}

func (p *Planner) commitKill(ctx context.Context, st *agentState, in CommitInput, intent models.EnforcementIntent) {
	if last, ok := st.recentKills[intent.PID]; ok && in.Now.Sub(last) < killSuppressWindow {
		return
	}
	st.recentKills[intent.PID] = in.Now
	for pid, at := range st.recentKills {
		if in.Now.Sub(at) >= killSuppressWindow {
			delete(st.recentKills, pid)
		}
	}

	p.journal.AddViolation(models.Violation{
		Kind:        models.ViolationBlockedProcess,
		AgentID:     in.AgentID,
		Hostname:    in.Hostname,
		ProcessName: intent.ProcessName,
		Reason:      intent.Reason,
		Timestamp:   in.Now,
	})
	_ = p.executor.Execute(ctx, intent)
}

func (p *Planner) commitBlockBrowsers(ctx context.Context, in CommitInput, intent models.EnforcementIntent) {
	p.journal.AddViolation(models.Violation{
		Kind:      models.ViolationAccessBlocked,
		AgentID:   in.AgentID,
		Hostname:  in.Hostname,
		Reason:    intent.Reason,
		Timestamp: in.Now,
	})
	for _, b := range in.Browsers {
		kill := intent
		kill.PID = b.PID
		kill.ProcessName = b.Name
		_ = p.executor.Execute(ctx, kill)
	}
	_ = p.executor.Execute(ctx, models.EnforcementIntent{
		Kind:    models.IntentWarning,
		AgentID: in.AgentID,
		Urgency: models.UrgencyCritical,
		Reason:  "Internet time is up. Browsers are being closed.",
	})
}

func (p *Planner) commitLogout(ctx context.Context, in CommitInput, intent models.EnforcementIntent) {
	grace := time.Duration(intent.GraceSeconds) * time.Second
	deadline := in.Now.Add(grace)

	if ph := p.Phase(in.AgentID); ph == PhaseGracePending || ph == PhaseLoggingOut {
		// A logout is already pending; only an earlier deadline matters.
		p.timers.ArmIfEarlier(in.AgentID, models.IntentLogout, deadline, func() {
			p.fireLogout(in.AgentID, intent)
		})
		return
	}

	kind := models.ViolationQuotaExhausted
	if intent.Reason == "bedtime" {
		kind = models.ViolationBedtime
	} else if intent.Reason == "access blocked" {
		kind = models.ViolationAccessBlocked
	}
	p.journal.AddViolation(models.Violation{
		Kind:      kind,
		AgentID:   in.AgentID,
		Hostname:  in.Hostname,
		Reason:    intent.Reason,
		Timestamp: in.Now,
	})

	_ = p.executor.Execute(ctx, models.EnforcementIntent{
		Kind:    models.IntentWarning,
		AgentID: in.AgentID,
		Urgency: models.UrgencyCritical,
		Reason:  fmt.Sprintf("Logging out in %d seconds: %s", intent.GraceSeconds, intent.Reason),
	})

	p.setPhase(in.AgentID, PhaseGracePending)
	p.timers.ArmIfEarlier(in.AgentID, models.IntentLogout, deadline, func() {
		p.fireLogout(in.AgentID, intent)
	})
	p.logger.Warn("Logout scheduled",
		"agent_id", in.AgentID, "reason", intent.Reason, "grace_seconds", intent.GraceSeconds)
}

// fireLogout runs on the timer goroutine once the grace period elapses, so
// phase moves go through the mutex like every other access.
func (p *Planner) fireLogout(agentID string, intent models.EnforcementIntent) {
	p.setPhase(agentID, PhaseLoggingOut)

	err := p.executor.Execute(context.Background(), models.EnforcementIntent{
		Kind:    models.IntentLogout,
		AgentID: agentID,
		Reason:  intent.Reason,
	})
	if err != nil {
		// Dispatch already journaled the failure; recover to Idle so the
		// next telemetry re-evaluates.
		p.setPhase(agentID, PhaseIdle)
		return
	}
	p.journal.AddActivity(models.ActivityEvent{
		Kind:      "forced_logout",
		AgentID:   agentID,
		Message:   "forced logout: " + intent.Reason,
		Timestamp: time.Now(),
	})
}

// OnActionResult settles the state machine when the agent acknowledges an
// action. A completed logout returns the agent to Idle.
func (p *Planner) OnActionResult(agentID, actionID string, success bool) {
	if actionID == "logout" {
		p.transition(agentID, PhaseLoggingOut, PhaseIdle)
	}
}

// OnStateChange handles an oracle push for an agent's bound child: every
// pending timer is cancelled and the agent returns to Idle so the next
// evaluation starts from a fresh verdict.
func (p *Planner) OnStateChange(agentID string) {
	n := p.timers.CancelAgent(agentID)
	p.setPhase(agentID, PhaseIdle)
	if n > 0 {
		p.logger.Info("Oracle state change cancelled pending enforcement",
			"agent_id", agentID, "timers_cancelled", n)
	}
}

// Release cancels all timers and forgets planner state for an agent. Called
// on unlink, disable, offline past threshold, and shutdown.
func (p *Planner) Release(agentID string) {
	p.timers.CancelAgent(agentID)
	p.mu.Lock()
	delete(p.states, agentID)
	p.mu.Unlock()
}
