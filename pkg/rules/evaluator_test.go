package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/models"
)

// Friday 2026-08-21 local time.
func fridayAt(hour, min, sec int) time.Time {
	return time.Date(2026, 8, 21, hour, min, sec, 0, time.Local)
}

func snapshotWith(procs ...models.ProcessInfo) *models.ProcessSnapshot {
	return &models.ProcessSnapshot{Timestamp: time.Now(), Processes: procs}
}

func TestBlockedProcessPass_CaseInsensitiveSubstring(t *testing.T) {
	child := &models.ChildConfig{ID: "c1", BlockedProcesses: []string{"minecraft"}}

	intents := Evaluate(Input{
		AgentID:  "a1",
		Child:    child,
		Snapshot: snapshotWith(models.ProcessInfo{PID: 42, Name: "Minecraft.exe"}),
		Now:      fridayAt(12, 0, 0),
	})

	require.Len(t, intents, 2)
	// BlockProcess sorts ahead of its paired warning.
	assert.Equal(t, models.IntentBlockProcess, intents[0].Kind)
	assert.Equal(t, 42, intents[0].PID)
	assert.Equal(t, "Minecraft.exe", intents[0].ProcessName)
	assert.Equal(t, models.IntentWarning, intents[1].Kind)
	assert.Equal(t, "Application Blocked", intents[1].Reason)
}

func TestBlockedProcessPass_NoMatchNoIntents(t *testing.T) {
	child := &models.ChildConfig{ID: "c1", BlockedProcesses: []string{"minecraft"}}

	intents := Evaluate(Input{
		AgentID:  "a1",
		Child:    child,
		Snapshot: snapshotWith(models.ProcessInfo{PID: 7, Name: "notepad.exe"}),
		Now:      fridayAt(12, 0, 0),
	})

	assert.Empty(t, intents)
}

func TestFocusProfile_WidensBlockedSet(t *testing.T) {
	child := &models.ChildConfig{ID: "c1"}
	focus := &models.FocusProfile{
		BlockedApps:       []string{"discord"},
		BlockedCategories: []models.Category{models.CategoryGames},
	}

	intents := Evaluate(Input{
		AgentID: "a1",
		Child:   child,
		Snapshot: snapshotWith(
			models.ProcessInfo{PID: 1, Name: "Discord.exe"},
			models.ProcessInfo{PID: 2, Name: "steam.exe", Category: models.CategoryGames},
			models.ProcessInfo{PID: 3, Name: "code.exe", Category: models.CategoryProductivity},
		),
		Focus: focus,
		Now:   fridayAt(12, 0, 0),
	})

	var killed []int
	for _, in := range intents {
		if in.Kind == models.IntentBlockProcess {
			killed = append(killed, in.PID)
		}
	}
	assert.ElementsMatch(t, []int{1, 2}, killed)
}

func TestSchedulePass_BlocksInsideWindowOnly(t *testing.T) {
	child := &models.ChildConfig{
		ID: "c1",
		Schedules: []models.Schedule{{
			Name:            "homework",
			Days:            []string{"fri"},
			Start:           "16:00",
			End:             "18:00",
			BlockedPatterns: []string{"steam"},
		}},
	}
	snap := snapshotWith(models.ProcessInfo{PID: 9, Name: "steam.exe", Category: models.CategoryGames})

	inside := Evaluate(Input{AgentID: "a1", Child: child, Snapshot: snap, Now: fridayAt(16, 30, 0)})
	require.Len(t, inside, 1)
	assert.Equal(t, models.IntentBlockProcess, inside[0].Kind)
	assert.Contains(t, inside[0].Reason, "homework")

	before := Evaluate(Input{AgentID: "a1", Child: child, Snapshot: snap, Now: fridayAt(15, 59, 0)})
	assert.Empty(t, before)

	atEnd := Evaluate(Input{AgentID: "a1", Child: child, Snapshot: snap, Now: fridayAt(18, 0, 0)})
	assert.Empty(t, atEnd)
}

func TestSchedulePass_AllowedCategoryExempt(t *testing.T) {
	child := &models.ChildConfig{
		ID: "c1",
		Schedules: []models.Schedule{{
			Name:              "homework",
			Days:              []string{"fri"},
			Start:             "16:00",
			End:               "18:00",
			BlockedPatterns:   []string{".exe"},
			AllowedCategories: []models.Category{models.CategoryEducation},
		}},
	}

	intents := Evaluate(Input{
		AgentID: "a1",
		Child:   child,
		Snapshot: snapshotWith(
			models.ProcessInfo{PID: 1, Name: "khan.exe", Category: models.CategoryEducation},
			models.ProcessInfo{PID: 2, Name: "steam.exe", Category: models.CategoryGames},
		),
		Now: fridayAt(16, 30, 0),
	})

	require.Len(t, intents, 1)
	assert.Equal(t, 2, intents[0].PID)
}

func TestBedtimePass_WarningLadder(t *testing.T) {
	child := &models.ChildConfig{
		ID:      "c1",
		Bedtime: &models.BedtimeRule{Enabled: true, Time: "21:00", Days: []string{"fri"}},
	}
	state := &BedtimeState{}

	eval := func(now time.Time) []models.EnforcementIntent {
		return Evaluate(Input{
			AgentID: "a1", Child: child, Bedtime: state,
			GraceSeconds: 60, Now: now,
		})
	}

	// 20:45 — 15-minute warning, normal urgency.
	got := eval(fridayAt(20, 45, 0))
	require.Len(t, got, 1)
	assert.Equal(t, models.IntentWarning, got[0].Kind)
	assert.Equal(t, models.WarnBedtime, got[0].Scope)
	assert.Equal(t, 15, got[0].MinutesRemaining)
	assert.Equal(t, models.UrgencyNormal, got[0].Urgency)

	// 20:45:30 — still inside the 15-minute band, already fired.
	assert.Empty(t, eval(fridayAt(20, 45, 30)))

	// 20:55 — 5-minute warning, critical.
	got = eval(fridayAt(20, 55, 0))
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].MinutesRemaining)
	assert.Equal(t, models.UrgencyCritical, got[0].Urgency)

	// 20:59 — 1-minute warning, critical.
	got = eval(fridayAt(20, 59, 0))
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].MinutesRemaining)
	assert.Equal(t, models.UrgencyCritical, got[0].Urgency)

	// 21:00 — logout with grace.
	got = eval(fridayAt(21, 0, 0))
	require.Len(t, got, 1)
	assert.Equal(t, models.IntentLogout, got[0].Kind)
	assert.Equal(t, "bedtime", got[0].Reason)
	assert.Equal(t, 60, got[0].GraceSeconds)
}

func TestBedtimePass_WrongDayInactive(t *testing.T) {
	child := &models.ChildConfig{
		ID:      "c1",
		Bedtime: &models.BedtimeRule{Enabled: true, Time: "21:00", Days: []string{"mon"}},
	}

	got := Evaluate(Input{
		AgentID: "a1", Child: child, Bedtime: &BedtimeState{},
		GraceSeconds: 60, Now: fridayAt(21, 30, 0),
	})
	assert.Empty(t, got)
}

func TestBedtimeState_RolloverClearsFired(t *testing.T) {
	state := &BedtimeState{}
	state.rollover(fridayAt(20, 45, 0))
	assert.True(t, state.fire(15))
	assert.False(t, state.fire(15))

	// Next day clears the dedup set.
	state.rollover(fridayAt(20, 45, 0).Add(24 * time.Hour))
	assert.True(t, state.fire(15))
}

func TestPriorityOrdering_LogoutFirst(t *testing.T) {
	child := &models.ChildConfig{
		ID:               "c1",
		BlockedProcesses: []string{"game"},
		Bedtime:          &models.BedtimeRule{Enabled: true, Time: "21:00", Days: []string{"fri"}},
	}

	intents := Evaluate(Input{
		AgentID:  "a1",
		Child:    child,
		Snapshot: snapshotWith(models.ProcessInfo{PID: 5, Name: "game.exe"}),
		Bedtime:  &BedtimeState{},
		Now:      fridayAt(21, 5, 0),
	})

	require.NotEmpty(t, intents)
	assert.Equal(t, models.IntentLogout, intents[0].Kind)
}

func TestDetectBrowsers(t *testing.T) {
	browsers := DetectBrowsers([]models.ProcessInfo{
		{PID: 1, Name: "chrome.exe"},
		{PID: 2, Name: "FIREFOX"},
		{PID: 3, Name: "notepad.exe"},
		{PID: 4, Name: "msedge.exe"},
	})

	require.Len(t, browsers, 3)
	assert.Equal(t, "Google Chrome", browsers[0].BrowserName)
	assert.Equal(t, "Firefox", browsers[1].BrowserName)
	assert.Equal(t, "Microsoft Edge", browsers[2].BrowserName)
}

func TestClassify_FillsSummaryAndCount(t *testing.T) {
	snap := &models.ProcessSnapshot{Processes: []models.ProcessInfo{
		{PID: 1, Name: "chrome.exe", Category: models.CategoryInternet},
		{PID: 2, Name: "steam.exe", Category: models.CategoryGames},
		{PID: 3, Name: "mystery.exe"},
	}}

	Classify(snap)

	assert.Equal(t, 3, snap.ProcessCount)
	assert.True(t, snap.BrowserActive)
	assert.Equal(t, 1, snap.Summary.Internet)
	assert.Equal(t, 1, snap.Summary.Games)
	assert.Equal(t, 1, snap.Summary.Other)
}
