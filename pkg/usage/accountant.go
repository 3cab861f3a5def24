// Package usage advances per-(agent, child, activity) time accumulators
// from telemetry timestamps. The accountant owns no timers: cells move only
// when telemetry arrives, and the daily reset happens on the first advance
// past local midnight.
package usage

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/models"
	"github.com/wardenhq/warden/pkg/rules"
)

// Accountant holds all usage cells. The map is guarded by a mutex; cell
// contents are only mutated by the owning agent's writer.
type Accountant struct {
	mu       sync.Mutex
	cells    map[string]*models.UsageCell
	settings func() config.Settings
}

// New creates an accountant reading live settings through settingsFn.
func New(settingsFn func() config.Settings) *Accountant {
	return &Accountant{
		cells:    make(map[string]*models.UsageCell),
		settings: settingsFn,
	}
}

func cellKey(agentID, childID string, activity models.ActivityKind) string {
	return agentID + "/" + childID + "/" + string(activity)
}

// Cell returns the live cell for a key, creating it at now on first use.
// The returned pointer is owned by the agent's single writer.
func (a *Accountant) Cell(agentID, childID string, activity models.ActivityKind, now time.Time) *models.UsageCell {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := cellKey(agentID, childID, activity)
	cell, ok := a.cells[key]
	if !ok {
		cell = &models.UsageCell{
			AgentID:       agentID,
			ChildID:       childID,
			Activity:      activity,
			LastAdvanceAt: now,
		}
		a.cells[key] = cell
	}
	return cell
}

// Advance moves both activity cells for (agent, child) forward to now.
//
// Computer time counts unless the session is idle and pauseOnIdle is set.
// Internet time counts iff the most recent process snapshot has browsers.
// Elapsed time is clamped to twice the report interval so late or lost
// telemetry never over-credits. Crossing local midnight zeroes the cell and
// clears fired warnings before advancing, so an interval that straddles
// midnight lands entirely on the new day. That misattributes at most one
// clamped interval of pre-midnight time, which is well under the warning
// granularity and not worth splitting the interval for.
func (a *Accountant) Advance(agentID, childID string, now time.Time, sess *models.Session, snap *models.ProcessSnapshot) (computer, internet *models.UsageCell) {
	s := a.settings()

	countComputer := true
	if sess != nil && sess.IsIdle && s.PauseOnIdle {
		countComputer = false
	}
	countInternet := snap.HasBrowsers()

	computer = a.advanceCell(agentID, childID, models.ActivityComputer, now, countComputer, s)
	internet = a.advanceCell(agentID, childID, models.ActivityInternet, now, countInternet, s)
	return computer, internet
}

func (a *Accountant) advanceCell(agentID, childID string, activity models.ActivityKind, now time.Time, count bool, s config.Settings) *models.UsageCell {
	cell := a.Cell(agentID, childID, activity, now)

	// Daily rollover before advancing.
	if rules.LocalDate(now) != rules.LocalDate(cell.LastAdvanceAt) {
		slog.Debug("Usage cell daily reset",
			"agent_id", agentID, "child_id", childID, "activity", activity)
		cell.ResetDay()
	}

	elapsed := now.Sub(cell.LastAdvanceAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if limit := 2 * s.MonitorInterval(); elapsed > limit {
		elapsed = limit
	}

	if count {
		cell.AccumulatedSeconds += int64(elapsed / time.Second)
	}
	cell.LastAdvanceAt = now
	return cell
}

// Flush commits elapsed time up to now for both cells of (agent, child).
// Called when a session ends so usage lands on the old child before the
// agent's session record switches.
func (a *Accountant) Flush(agentID, childID string, now time.Time, sess *models.Session, snap *models.ProcessSnapshot) {
	if childID == "" {
		return
	}
	a.Advance(agentID, childID, now, sess, snap)
}

// Accumulated returns today's accumulated seconds for a key, zero when the
// cell does not exist.
func (a *Accountant) Accumulated(agentID, childID string, activity models.ActivityKind) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cell, ok := a.cells[cellKey(agentID, childID, activity)]; ok {
		return cell.AccumulatedSeconds
	}
	return 0
}
