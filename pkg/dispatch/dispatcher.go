package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/journal"
	"github.com/wardenhq/warden/pkg/models"
)

// AgentCommander triggers a deployed action on a remote agent, returning the
// request id the agent echoes in its action_result. Implemented by the
// gateway.
type AgentCommander interface {
	TriggerAction(ctx context.Context, agentID, actionID string, params map[string]any) (string, error)
}

// pendingKillTTL bounds how long an unacknowledged kill stays tracked.
const pendingKillTTL = 5 * time.Minute

// pendingKill holds the context for one in-flight kill so its violation can
// be journaled when the agent confirms it.
type pendingKill struct {
	agentID     string
	processName string
	reason      string
	sentAt      time.Time
}

// Dispatcher executes enforcement intents against agents and records the
// outcomes in the journal. It carries no policy: deciding what to enforce
// is the planner's job.
type Dispatcher struct {
	commander AgentCommander
	journal   *journal.Journal
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]pendingKill
}

// NewDispatcher creates a dispatcher over the given commander and journal.
func NewDispatcher(commander AgentCommander, jrnl *journal.Journal) *Dispatcher {
	return &Dispatcher{
		commander: commander,
		journal:   jrnl,
		logger:    slog.Default().With("component", "dispatcher"),
		pending:   make(map[string]pendingKill),
	}
}

// Execute carries out a single intent. Warning, kill, lock, and logout map
// onto the agent's deployed actions; focus intents are state-only and
// handled upstream.
func (d *Dispatcher) Execute(ctx context.Context, intent models.EnforcementIntent) error {
	var err error
	switch intent.Kind {
	case models.IntentWarning:
		err = d.warn(ctx, intent)
	case models.IntentBlockProcess:
		err = d.kill(ctx, intent)
	case models.IntentBlockBrowsers:
		err = d.killBrowsers(ctx, intent)
	case models.IntentLock:
		err = d.trigger(ctx, intent.AgentID, "lock", nil)
	case models.IntentLogout:
		err = d.logout(ctx, intent)
	default:
		return fmt.Errorf("unsupported intent kind: %s", intent.Kind)
	}

	if err != nil {
		d.logger.Error("Enforcement action failed",
			"agent_id", intent.AgentID, "kind", intent.Kind, "error", err)
		d.journal.AddViolation(models.Violation{
			Kind:      models.ViolationActionFailed,
			AgentID:   intent.AgentID,
			Reason:    fmt.Sprintf("%s: %v", intent.Kind, err),
			Timestamp: time.Now(),
		})
		return fmt.Errorf("executing %s on agent %s: %w", intent.Kind, intent.AgentID, err)
	}
	return nil
}

// trigger fires an action, discarding the request id.
func (d *Dispatcher) trigger(ctx context.Context, agentID, actionID string, params map[string]any) error {
	_, err := d.commander.TriggerAction(ctx, agentID, actionID, params)
	return err
}

func (d *Dispatcher) warn(ctx context.Context, intent models.EnforcementIntent) error {
	title, message := warningText(intent)
	return d.trigger(ctx, intent.AgentID, "warn", map[string]any{
		"title":   title,
		"message": message,
		"urgent":  intent.Urgency == models.UrgencyCritical,
	})
}

func (d *Dispatcher) kill(ctx context.Context, intent models.EnforcementIntent) error {
	requestID, err := d.commander.TriggerAction(ctx, intent.AgentID, "kill", map[string]any{
		"pid":         intent.PID,
		"processName": intent.ProcessName,
	})
	if err != nil {
		return err
	}
	d.logger.Info("Kill requested",
		"agent_id", intent.AgentID, "process", intent.ProcessName, "pid", intent.PID)
	d.trackKill(requestID, intent)
	return nil
}

// trackKill remembers an in-flight kill until its action_result arrives.
// Stale entries for responses that never came are pruned on the way in.
func (d *Dispatcher) trackKill(requestID string, intent models.EnforcementIntent) {
	if requestID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, pk := range d.pending {
		if time.Since(pk.sentAt) > pendingKillTTL {
			delete(d.pending, id)
		}
	}
	d.pending[requestID] = pendingKill{
		agentID:     intent.AgentID,
		processName: intent.ProcessName,
		reason:      intent.Reason,
		sentAt:      time.Now(),
	}
}

// OnActionResult settles an in-flight kill. The process_killed violation is
// journaled only when the agent reports the kill succeeded; a failed result
// is already journaled as action_failed by the event handler.
func (d *Dispatcher) OnActionResult(agentID, actionID, requestID string, success bool, at time.Time) {
	if actionID != "kill" || requestID == "" {
		return
	}
	d.mu.Lock()
	pk, ok := d.pending[requestID]
	delete(d.pending, requestID)
	d.mu.Unlock()
	if !ok || !success {
		return
	}

	d.logger.Info("Blocked process terminated",
		"agent_id", pk.agentID, "process", pk.processName)
	d.journal.AddViolation(models.Violation{
		Kind:        models.ViolationProcessKilled,
		AgentID:     pk.agentID,
		ProcessName: pk.processName,
		Reason:      pk.reason,
		Timestamp:   at,
	})
}

// killBrowsers terminates every browser in the intent's process list. Used
// when internet time runs out while computer time remains; the access
// violation is journaled at commit, not per browser kill.
func (d *Dispatcher) killBrowsers(ctx context.Context, intent models.EnforcementIntent) error {
	return d.trigger(ctx, intent.AgentID, "kill", map[string]any{
		"pid":         intent.PID,
		"processName": intent.ProcessName,
	})
}

func (d *Dispatcher) logout(ctx context.Context, intent models.EnforcementIntent) error {
	d.logger.Warn("Forcing logout",
		"agent_id", intent.AgentID, "reason", intent.Reason)
	return d.trigger(ctx, intent.AgentID, "logout", map[string]any{
		"reason": intent.Reason,
	})
}

// warningText renders the user-facing title and body for a warning intent.
func warningText(intent models.EnforcementIntent) (title, message string) {
	switch intent.Scope {
	case models.WarnComputer:
		return "Computer Time", fmt.Sprintf("%d minutes of computer time remaining today.", intent.MinutesRemaining)
	case models.WarnInternet:
		return "Internet Time", fmt.Sprintf("%d minutes of internet time remaining today.", intent.MinutesRemaining)
	case models.WarnBedtime:
		return "Bedtime", fmt.Sprintf("Bedtime in %d minutes.", intent.MinutesRemaining)
	}
	if intent.Reason != "" {
		if intent.ProcessName != "" {
			return intent.Reason, fmt.Sprintf("%s is not allowed right now.", intent.ProcessName)
		}
		return "Warning", intent.Reason
	}
	return "Warning", "Please finish up."
}
