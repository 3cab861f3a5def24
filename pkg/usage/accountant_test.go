package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/models"
)

func testSettings() func() config.Settings {
	s := config.DefaultSettings()
	return func() config.Settings { return s }
}

func browserSnapshot() *models.ProcessSnapshot {
	return &models.ProcessSnapshot{
		Browsers: []models.BrowserInfo{{PID: 1, Name: "chrome.exe", BrowserName: "Google Chrome"}},
	}
}

func TestAdvance_AccumulatesElapsed(t *testing.T) {
	a := New(testSettings())
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.Local)

	a.Advance("a1", "c1", t0, &models.Session{}, nil)
	computer, internet := a.Advance("a1", "c1", t0.Add(30*time.Second), &models.Session{}, nil)

	assert.Equal(t, int64(30), computer.AccumulatedSeconds)
	// No browsers observed: internet cell advances but does not count.
	assert.Equal(t, int64(0), internet.AccumulatedSeconds)
}

func TestAdvance_ClampsToTwiceReportInterval(t *testing.T) {
	a := New(testSettings())
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.Local)

	a.Advance("a1", "c1", t0, &models.Session{}, nil)
	// 10-minute gap, but the default interval is 30s, so at most 60s credit.
	computer, _ := a.Advance("a1", "c1", t0.Add(10*time.Minute), &models.Session{}, nil)

	assert.Equal(t, int64(60), computer.AccumulatedSeconds)
}

func TestAdvance_BackwardsClockCreditsNothing(t *testing.T) {
	a := New(testSettings())
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.Local)

	a.Advance("a1", "c1", t0, &models.Session{}, nil)
	computer, _ := a.Advance("a1", "c1", t0.Add(-time.Minute), &models.Session{}, nil)

	assert.Equal(t, int64(0), computer.AccumulatedSeconds)
}

func TestAdvance_IdlePausesComputerTime(t *testing.T) {
	a := New(testSettings())
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.Local)

	a.Advance("a1", "c1", t0, &models.Session{}, nil)
	computer, _ := a.Advance("a1", "c1", t0.Add(30*time.Second), &models.Session{IsIdle: true}, nil)
	assert.Equal(t, int64(0), computer.AccumulatedSeconds)

	// Active again: counting resumes from the idle advance point.
	computer, _ = a.Advance("a1", "c1", t0.Add(60*time.Second), &models.Session{}, nil)
	assert.Equal(t, int64(30), computer.AccumulatedSeconds)
}

func TestAdvance_IdleCountsWhenPauseOnIdleDisabled(t *testing.T) {
	s := config.DefaultSettings()
	s.PauseOnIdle = false
	a := New(func() config.Settings { return s })
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.Local)

	a.Advance("a1", "c1", t0, &models.Session{}, nil)
	computer, _ := a.Advance("a1", "c1", t0.Add(30*time.Second), &models.Session{IsIdle: true}, nil)

	assert.Equal(t, int64(30), computer.AccumulatedSeconds)
}

func TestAdvance_InternetCountsOnlyWithBrowsers(t *testing.T) {
	a := New(testSettings())
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.Local)

	a.Advance("a1", "c1", t0, &models.Session{}, browserSnapshot())
	_, internet := a.Advance("a1", "c1", t0.Add(30*time.Second), &models.Session{}, browserSnapshot())
	assert.Equal(t, int64(30), internet.AccumulatedSeconds)

	// Browsers closed: internet time stops, computer time continues.
	computer, internet := a.Advance("a1", "c1", t0.Add(60*time.Second), &models.Session{}, nil)
	assert.Equal(t, int64(30), internet.AccumulatedSeconds)
	assert.Equal(t, int64(60), computer.AccumulatedSeconds)
}

func TestAdvance_DailyRolloverResetsCellAndWarnings(t *testing.T) {
	a := New(testSettings())
	t0 := time.Date(2026, 8, 21, 23, 59, 30, 0, time.Local)

	a.Advance("a1", "c1", t0, &models.Session{}, nil)
	computer, _ := a.Advance("a1", "c1", t0.Add(15*time.Second), &models.Session{}, nil)
	computer.FireWarning(15)
	assert.Equal(t, int64(15), computer.AccumulatedSeconds)

	// First telemetry past midnight: cell zeroed, warnings cleared, and the
	// post-midnight elapsed is not credited retroactively.
	computer, _ = a.Advance("a1", "c1", t0.Add(45*time.Second), &models.Session{}, nil)
	assert.Equal(t, int64(30), computer.AccumulatedSeconds)
	assert.Empty(t, computer.WarningsFired)
}

func TestAdvance_MonotoneWithinDay(t *testing.T) {
	a := New(testSettings())
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.Local)

	prev := int64(0)
	for i := 1; i <= 20; i++ {
		computer, _ := a.Advance("a1", "c1", t0.Add(time.Duration(i)*30*time.Second), &models.Session{}, nil)
		assert.GreaterOrEqual(t, computer.AccumulatedSeconds, prev)
		prev = computer.AccumulatedSeconds
	}
	assert.Equal(t, int64(600), prev)
}

func TestCells_AreIndependentPerChild(t *testing.T) {
	a := New(testSettings())
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.Local)

	a.Advance("a1", "c1", t0, &models.Session{}, nil)
	a.Advance("a1", "c1", t0.Add(30*time.Second), &models.Session{}, nil)
	a.Advance("a1", "c2", t0.Add(30*time.Second), &models.Session{}, nil)

	assert.Equal(t, int64(30), a.Accumulated("a1", "c1", models.ActivityComputer))
	assert.Equal(t, int64(0), a.Accumulated("a1", "c2", models.ActivityComputer))
}
