package rules

import (
	"log/slog"
	"math"
	"sort"

	"time"

	"github.com/wardenhq/warden/pkg/models"
)

// bedtimeWarnThresholds are the minutes-before-bedtime marks at which a
// warning fires, each at most once per day.
var bedtimeWarnThresholds = []int{15, 5, 1}

// BedtimeState tracks per-agent bedtime warning dedup for the current day.
// Owned by the per-agent writer; the evaluator mutates it in place.
type BedtimeState struct {
	Day   string
	Fired map[int]bool
}

// rollover clears fired warnings when the local day changes.
func (s *BedtimeState) rollover(now time.Time) {
	day := LocalDate(now)
	if s.Day != day {
		s.Day = day
		s.Fired = make(map[int]bool)
	}
}

// fire marks a threshold fired and reports whether this was the first time
// today.
func (s *BedtimeState) fire(threshold int) bool {
	if s.Fired == nil {
		s.Fired = make(map[int]bool)
	}
	if s.Fired[threshold] {
		return false
	}
	s.Fired[threshold] = true
	return true
}

// Input is one evaluation request: a snapshot bound to a child, with the
// agent's focus profile (nil when focus is inactive).
type Input struct {
	AgentID      string
	Child        *models.ChildConfig
	Snapshot     *models.ProcessSnapshot
	Focus        *models.FocusProfile
	Bedtime      *BedtimeState
	GraceSeconds int
	Now          time.Time
}

// Evaluate runs the blocked-process, schedule, and bedtime passes and
// returns the resulting intents sorted by enforcement priority
// (Logout > BlockBrowsers > BlockProcess > Warning).
func Evaluate(in Input) []models.EnforcementIntent {
	if in.Child == nil {
		return nil
	}

	var intents []models.EnforcementIntent
	intents = append(intents, blockedProcessPass(in)...)
	intents = append(intents, schedulePass(in)...)
	intents = append(intents, bedtimePass(in)...)

	sort.SliceStable(intents, func(i, j int) bool {
		return intents[i].Kind.Priority() > intents[j].Kind.Priority()
	})
	return intents
}

// blockedProcessPass kills processes matching the child's blocked patterns,
// widened by the focus profile while focus is active. First pattern match
// wins; each kill is paired with a user-visible warning.
func blockedProcessPass(in Input) []models.EnforcementIntent {
	if in.Snapshot == nil {
		return nil
	}

	patterns := in.Child.BlockedProcesses
	var focusCategories []models.Category
	if in.Focus != nil {
		patterns = append(append([]string(nil), patterns...), in.Focus.BlockedApps...)
		focusCategories = in.Focus.BlockedCategories
	}

	var intents []models.EnforcementIntent
	for _, p := range in.Snapshot.Processes {
		pattern := matchAny(p.Name, patterns)
		if pattern == "" && len(focusCategories) > 0 {
			for _, cat := range focusCategories {
				if p.Category == cat {
					pattern = string(cat)
					break
				}
			}
		}
		if pattern == "" {
			continue
		}

		slog.Debug("Blocked process detected",
			"agent_id", in.AgentID, "process", p.Name, "pid", p.PID, "pattern", pattern)
		intents = append(intents,
			models.EnforcementIntent{
				Kind:        models.IntentBlockProcess,
				AgentID:     in.AgentID,
				PID:         p.PID,
				ProcessName: p.Name,
				Reason:      "matched blocked pattern " + pattern,
			},
			models.EnforcementIntent{
				Kind:        models.IntentWarning,
				AgentID:     in.AgentID,
				Urgency:     models.UrgencyNormal,
				ProcessName: p.Name,
				Reason:      "Application Blocked",
			})
	}
	return intents
}

// schedulePass enforces active time-of-day windows: a process matching the
// window's blocked patterns whose category is not allowed is killed.
func schedulePass(in Input) []models.EnforcementIntent {
	if in.Snapshot == nil {
		return nil
	}

	var intents []models.EnforcementIntent
	nowMin := minutesIntoDay(in.Now)

	for _, sched := range in.Child.Schedules {
		if !dayMatches(sched.Days, in.Now) {
			continue
		}
		start, err := parseHHMM(sched.Start)
		if err != nil {
			continue
		}
		end, err := parseHHMM(sched.End)
		if err != nil {
			continue
		}
		if nowMin < float64(start) || nowMin >= float64(end) {
			continue
		}

		for _, p := range in.Snapshot.Processes {
			if matchAny(p.Name, sched.BlockedPatterns) == "" {
				continue
			}
			if categoryAllowed(p.Category, sched.AllowedCategories) {
				continue
			}
			intents = append(intents, models.EnforcementIntent{
				Kind:        models.IntentBlockProcess,
				AgentID:     in.AgentID,
				PID:         p.PID,
				ProcessName: p.Name,
				Reason:      "blocked by schedule " + sched.Name,
			})
		}
	}
	return intents
}

func categoryAllowed(c models.Category, allowed []models.Category) bool {
	for _, a := range allowed {
		if c == a {
			return true
		}
	}
	return false
}

// bedtimePass emits the 15/5/1-minute warning ladder ahead of bedtime and a
// logout once the deadline passes. Warnings within 5 minutes are critical.
func bedtimePass(in Input) []models.EnforcementIntent {
	bt := in.Child.Bedtime
	if bt == nil || !bt.Enabled || !dayMatches(bt.Days, in.Now) {
		return nil
	}
	deadline, err := parseHHMM(bt.Time)
	if err != nil {
		slog.Warn("Invalid bedtime time-of-day", "child_id", in.Child.ID, "time", bt.Time)
		return nil
	}
	if in.Bedtime != nil {
		in.Bedtime.rollover(in.Now)
	}

	remaining := float64(deadline) - minutesIntoDay(in.Now)
	if remaining <= 0 {
		return []models.EnforcementIntent{{
			Kind:         models.IntentLogout,
			AgentID:      in.AgentID,
			Reason:       "bedtime",
			GraceSeconds: in.GraceSeconds,
		}}
	}

	minutes := int(math.Ceil(remaining))
	for _, threshold := range bedtimeWarnThresholds {
		if minutes != threshold {
			continue
		}
		if in.Bedtime != nil && !in.Bedtime.fire(threshold) {
			break
		}
		urgency := models.UrgencyNormal
		if threshold <= 5 {
			urgency = models.UrgencyCritical
		}
		return []models.EnforcementIntent{{
			Kind:             models.IntentWarning,
			AgentID:          in.AgentID,
			Scope:            models.WarnBedtime,
			MinutesRemaining: threshold,
			Urgency:          urgency,
		}}
	}
	return nil
}
