package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/journal"
	"github.com/wardenhq/warden/pkg/models"
)

type triggeredAction struct {
	AgentID   string
	ActionID  string
	RequestID string
	Params    map[string]any
}

type fakeCommander struct {
	actions []triggeredAction
	err     error
}

func (f *fakeCommander) TriggerAction(_ context.Context, agentID, actionID string, params map[string]any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	requestID := fmt.Sprintf("req-%d", len(f.actions)+1)
	f.actions = append(f.actions, triggeredAction{AgentID: agentID, ActionID: actionID, RequestID: requestID, Params: params})
	return requestID, nil
}

func TestExecute_KillJournalsOnConfirmation(t *testing.T) {
	cmd := &fakeCommander{}
	jrnl := journal.New()
	d := NewDispatcher(cmd, jrnl)

	err := d.Execute(context.Background(), models.EnforcementIntent{
		Kind:        models.IntentBlockProcess,
		AgentID:     "a1",
		PID:         42,
		ProcessName: "Minecraft.exe",
		Reason:      "matched blocked pattern minecraft",
	})

	require.NoError(t, err)
	require.Len(t, cmd.actions, 1)
	assert.Equal(t, "kill", cmd.actions[0].ActionID)
	assert.Equal(t, 42, cmd.actions[0].Params["pid"])

	// Dispatch alone records nothing: the violation waits for the agent's
	// action_result.
	assert.Empty(t, jrnl.Violations(0))

	d.OnActionResult("a1", "kill", cmd.actions[0].RequestID, true, time.Now())

	violations := jrnl.Violations(0)
	require.Len(t, violations, 1)
	assert.Equal(t, models.ViolationProcessKilled, violations[0].Kind)
	assert.Equal(t, "Minecraft.exe", violations[0].ProcessName)
}

func TestExecute_FailedKillResultNotJournaledAsKilled(t *testing.T) {
	cmd := &fakeCommander{}
	jrnl := journal.New()
	d := NewDispatcher(cmd, jrnl)

	err := d.Execute(context.Background(), models.EnforcementIntent{
		Kind: models.IntentBlockProcess, AgentID: "a1", PID: 42, ProcessName: "Minecraft.exe",
	})
	require.NoError(t, err)

	d.OnActionResult("a1", "kill", cmd.actions[0].RequestID, false, time.Now())

	assert.Empty(t, jrnl.Violations(0))
}

func TestOnActionResult_UnknownRequestIgnored(t *testing.T) {
	jrnl := journal.New()
	d := NewDispatcher(&fakeCommander{}, jrnl)

	d.OnActionResult("a1", "kill", "req-nope", true, time.Now())

	assert.Empty(t, jrnl.Violations(0))
}

func TestExecute_WarningRendersQuotaText(t *testing.T) {
	cmd := &fakeCommander{}
	d := NewDispatcher(cmd, journal.New())

	err := d.Execute(context.Background(), models.EnforcementIntent{
		Kind:             models.IntentWarning,
		AgentID:          "a1",
		Scope:            models.WarnComputer,
		MinutesRemaining: 15,
		Urgency:          models.UrgencyNormal,
	})

	require.NoError(t, err)
	require.Len(t, cmd.actions, 1)
	assert.Equal(t, "warn", cmd.actions[0].ActionID)
	assert.Equal(t, "Computer Time", cmd.actions[0].Params["title"])
	assert.Contains(t, cmd.actions[0].Params["message"], "15 minutes")
	assert.Equal(t, false, cmd.actions[0].Params["urgent"])
}

func TestExecute_CriticalWarningIsUrgent(t *testing.T) {
	cmd := &fakeCommander{}
	d := NewDispatcher(cmd, journal.New())

	err := d.Execute(context.Background(), models.EnforcementIntent{
		Kind:             models.IntentWarning,
		AgentID:          "a1",
		Scope:            models.WarnBedtime,
		MinutesRemaining: 5,
		Urgency:          models.UrgencyCritical,
	})

	require.NoError(t, err)
	assert.Equal(t, true, cmd.actions[0].Params["urgent"])
}

func TestExecute_FailureJournalsActionFailed(t *testing.T) {
	cmd := &fakeCommander{err: errors.New("agent offline")}
	jrnl := journal.New()
	d := NewDispatcher(cmd, jrnl)

	err := d.Execute(context.Background(), models.EnforcementIntent{
		Kind:    models.IntentLogout,
		AgentID: "a1",
		Reason:  "bedtime",
	})

	require.Error(t, err)
	violations := jrnl.Violations(0)
	require.Len(t, violations, 1)
	assert.Equal(t, models.ViolationActionFailed, violations[0].Kind)
	assert.Contains(t, violations[0].Reason, "agent offline")
}

func TestExecute_UnsupportedKind(t *testing.T) {
	d := NewDispatcher(&fakeCommander{}, journal.New())
	err := d.Execute(context.Background(), models.EnforcementIntent{Kind: "bogus"})
	assert.Error(t, err)
}
