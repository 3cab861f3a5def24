// Package journal keeps bounded in-memory rings of violations and activity
// events, with fan-out to subscribers as entries are appended.
package journal

import (
	"sync"

	"github.com/wardenhq/warden/pkg/models"
)

const (
	// ViolationCap bounds the violation ring.
	ViolationCap = 200
	// ActivityCap bounds the activity ring.
	ActivityCap = 500
)

// ViolationListener receives each violation as it is appended.
type ViolationListener func(models.Violation)

// ActivityListener receives each activity event as it is appended.
type ActivityListener func(models.ActivityEvent)

// Journal holds both rings. Entries append at the head; the tail is evicted
// once the cap is reached. Reads return newest-first.
type Journal struct {
	mu         sync.RWMutex
	violations []models.Violation
	activity   []models.ActivityEvent

	violationListeners []ViolationListener
	activityListeners  []ActivityListener
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// OnViolation registers a listener for new violations. Listeners are invoked
// synchronously on the appending goroutine and must not block.
func (j *Journal) OnViolation(l ViolationListener) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.violationListeners = append(j.violationListeners, l)
}

// OnActivity registers a listener for new activity events.
func (j *Journal) OnActivity(l ActivityListener) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.activityListeners = append(j.activityListeners, l)
}

// AddViolation appends a violation, evicting the oldest entry at capacity.
func (j *Journal) AddViolation(v models.Violation) {
	j.mu.Lock()
	j.violations = append(j.violations, v)
	if len(j.violations) > ViolationCap {
		j.violations = j.violations[len(j.violations)-ViolationCap:]
	}
	listeners := append([]ViolationListener(nil), j.violationListeners...)
	j.mu.Unlock()

	for _, l := range listeners {
		l(v)
	}
}

// AddActivity appends an activity event, evicting the oldest at capacity.
func (j *Journal) AddActivity(a models.ActivityEvent) {
	j.mu.Lock()
	j.activity = append(j.activity, a)
	if len(j.activity) > ActivityCap {
		j.activity = j.activity[len(j.activity)-ActivityCap:]
	}
	listeners := append([]ActivityListener(nil), j.activityListeners...)
	j.mu.Unlock()

	for _, l := range listeners {
		l(a)
	}
}

// Violations returns up to limit entries, newest first. limit <= 0 returns
// everything.
func (j *Journal) Violations(limit int) []models.Violation {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := len(j.violations)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Violation, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, j.violations[i])
	}
	return out
}

// Activity returns up to limit activity events, newest first.
func (j *Journal) Activity(limit int) []models.ActivityEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := len(j.activity)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.ActivityEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, j.activity[i])
	}
	return out
}

// ClearViolations empties the violation ring.
func (j *Journal) ClearViolations() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.violations = nil
}

// Restore replaces both rings from persisted state, trimming to caps.
// Listeners are not notified; restore is a load-time operation.
func (j *Journal) Restore(violations []models.Violation, activity []models.ActivityEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(violations) > ViolationCap {
		violations = violations[len(violations)-ViolationCap:]
	}
	if len(activity) > ActivityCap {
		activity = activity[len(activity)-ActivityCap:]
	}
	j.violations = append([]models.Violation(nil), violations...)
	j.activity = append([]models.ActivityEvent(nil), activity...)
}

// Snapshot returns copies of both rings, oldest first, for persistence.
func (j *Journal) Snapshot() ([]models.Violation, []models.ActivityEvent) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]models.Violation(nil), j.violations...),
		append([]models.ActivityEvent(nil), j.activity...)
}
