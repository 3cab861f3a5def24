package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wardenhq/warden/pkg/models"
)

func violation(i int) models.Violation {
	return models.Violation{
		Kind:      models.ViolationBlockedProcess,
		AgentID:   "agent-1",
		Reason:    fmt.Sprintf("violation %d", i),
		Timestamp: time.Now(),
	}
}

func TestJournal_NewestFirst(t *testing.T) {
	j := New()

	for i := 0; i < 5; i++ {
		j.AddViolation(violation(i))
	}

	got := j.Violations(3)
	assert.Len(t, got, 3)
	assert.Equal(t, "violation 4", got[0].Reason)
	assert.Equal(t, "violation 3", got[1].Reason)
	assert.Equal(t, "violation 2", got[2].Reason)
}

func TestJournal_ViolationCapEvictsTail(t *testing.T) {
	j := New()

	for i := 0; i < ViolationCap+10; i++ {
		j.AddViolation(violation(i))
	}

	all := j.Violations(0)
	assert.Len(t, all, ViolationCap)
	// Newest entry survives, oldest ten evicted.
	assert.Equal(t, fmt.Sprintf("violation %d", ViolationCap+9), all[0].Reason)
	assert.Equal(t, "violation 10", all[len(all)-1].Reason)
}

func TestJournal_ActivityCap(t *testing.T) {
	j := New()

	for i := 0; i < ActivityCap+1; i++ {
		j.AddActivity(models.ActivityEvent{Kind: "session_update", Message: fmt.Sprintf("a %d", i)})
	}

	all := j.Activity(0)
	assert.Len(t, all, ActivityCap)
	assert.Equal(t, fmt.Sprintf("a %d", ActivityCap), all[0].Message)
}

func TestJournal_LimitLargerThanRing(t *testing.T) {
	j := New()
	j.AddViolation(violation(1))

	got := j.Violations(50)
	assert.Len(t, got, 1)
}

func TestJournal_ListenersReceiveAppends(t *testing.T) {
	j := New()

	var seen []models.Violation
	j.OnViolation(func(v models.Violation) { seen = append(seen, v) })

	j.AddViolation(violation(1))
	j.AddViolation(violation(2))

	assert.Len(t, seen, 2)
	assert.Equal(t, "violation 2", seen[1].Reason)
}

func TestJournal_ClearViolations(t *testing.T) {
	j := New()
	j.AddViolation(violation(1))
	j.AddActivity(models.ActivityEvent{Kind: "x", Message: "kept"})

	j.ClearViolations()

	assert.Empty(t, j.Violations(0))
	assert.Len(t, j.Activity(0), 1)
}

func TestJournal_RestoreRoundTrip(t *testing.T) {
	j := New()
	j.AddViolation(violation(1))
	j.AddViolation(violation(2))
	j.AddActivity(models.ActivityEvent{Kind: "x", Message: "m"})

	vs, as := j.Snapshot()

	restored := New()
	restored.Restore(vs, as)

	gotV := restored.Violations(0)
	assert.Len(t, gotV, 2)
	assert.Equal(t, "violation 2", gotV[0].Reason)
	assert.Len(t, restored.Activity(0), 1)
}
