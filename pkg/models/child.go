package models

// Category classifies a process for schedule and focus rules.
type Category string

const (
	CategoryGames        Category = "games"
	CategoryEducation    Category = "education"
	CategoryProductivity Category = "productivity"
	CategoryInternet     Category = "internet"
	CategoryOther        Category = "other"
)

// ChildConfig is the per-child enforcement configuration. The child id is
// assigned by the external oracle service and opaque to the core.
type ChildConfig struct {
	ID string `json:"id"`

	// Daily caps in minutes. Nil means unlimited. The caps are informative
	// for the UI; the oracle remains authoritative for remaining time.
	ComputerTimeCapMinutes *int `json:"computer_time_cap_minutes,omitempty"`
	InternetTimeCapMinutes *int `json:"internet_time_cap_minutes,omitempty"`

	// BlockedProcesses are case-insensitive substring patterns matched
	// against process names. First match wins.
	BlockedProcesses []string `json:"blocked_processes,omitempty"`

	Bedtime   *BedtimeRule `json:"bedtime,omitempty"`
	Schedules []Schedule   `json:"schedules,omitempty"`
	FocusMode *FocusProfile `json:"focus_mode,omitempty"`
}

// Clone returns a deep copy of the child configuration.
func (c *ChildConfig) Clone() *ChildConfig {
	cp := *c
	cp.BlockedProcesses = append([]string(nil), c.BlockedProcesses...)
	if c.Bedtime != nil {
		bt := *c.Bedtime
		bt.Days = append([]string(nil), c.Bedtime.Days...)
		cp.Bedtime = &bt
	}
	if c.Schedules != nil {
		cp.Schedules = make([]Schedule, len(c.Schedules))
		for i, s := range c.Schedules {
			cp.Schedules[i] = s
			cp.Schedules[i].Days = append([]string(nil), s.Days...)
			cp.Schedules[i].AllowedCategories = append([]Category(nil), s.AllowedCategories...)
			cp.Schedules[i].BlockedPatterns = append([]string(nil), s.BlockedPatterns...)
		}
	}
	if c.FocusMode != nil {
		fm := *c.FocusMode
		fm.HideIcons = append([]string(nil), c.FocusMode.HideIcons...)
		fm.BlockedCategories = append([]Category(nil), c.FocusMode.BlockedCategories...)
		fm.BlockedApps = append([]string(nil), c.FocusMode.BlockedApps...)
		cp.FocusMode = &fm
	}
	return &cp
}

// BedtimeRule is a daily cutoff after which the child is logged out.
// Time is a local time-of-day in "HH:MM" form; Days holds lowercase
// three-letter weekday names ("mon".."sun").
type BedtimeRule struct {
	Enabled bool     `json:"enabled"`
	Time    string   `json:"time"`
	Days    []string `json:"days"`
}

// Schedule is a time-of-day block window. While active, processes matching
// BlockedPatterns are killed unless their category is allowed.
type Schedule struct {
	Name              string     `json:"name"`
	Days              []string   `json:"days"`
	Start             string     `json:"start"` // "HH:MM" inclusive
	End               string     `json:"end"`   // "HH:MM" exclusive
	AllowedCategories []Category `json:"allowed_categories,omitempty"`
	BlockedPatterns   []string   `json:"blocked_patterns,omitempty"`
}

// FocusProfile temporarily broadens the blocked set to reduce distraction.
// Enforcement is classification-only: the profile's patterns and categories
// join the rule evaluator's blocked view while focus is active.
type FocusProfile struct {
	HideIcons         []string   `json:"hide_icons,omitempty"`
	BlockedCategories []Category `json:"blocked_categories,omitempty"`
	BlockedApps       []string   `json:"blocked_apps,omitempty"`
}

// Equal reports whether two profiles describe the same focus configuration.
// Used to make FocusApply idempotent.
func (p *FocusProfile) Equal(o *FocusProfile) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.HideIcons) != len(o.HideIcons) ||
		len(p.BlockedCategories) != len(o.BlockedCategories) ||
		len(p.BlockedApps) != len(o.BlockedApps) {
		return false
	}
	for i := range p.HideIcons {
		if p.HideIcons[i] != o.HideIcons[i] {
			return false
		}
	}
	for i := range p.BlockedCategories {
		if p.BlockedCategories[i] != o.BlockedCategories[i] {
			return false
		}
	}
	for i := range p.BlockedApps {
		if p.BlockedApps[i] != o.BlockedApps[i] {
			return false
		}
	}
	return true
}
