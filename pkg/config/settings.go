// Package config loads and validates warden's system configuration and
// holds the runtime monitoring settings.
package config

import (
	"fmt"
	"time"
)

// Settings are the runtime monitoring knobs. They live in the persisted
// state blob and can be changed at runtime through the control API.
// Interval and threshold fields are milliseconds on the wire to match the
// agent script contract; durations are exposed through helper methods.
type Settings struct {
	// MonitorIntervalMs is how often agent monitor scripts run.
	MonitorIntervalMs int `json:"monitorInterval" yaml:"monitor_interval_ms"`

	// WarningTimes are the ladder thresholds in minutes, descending.
	WarningTimes []int `json:"warningTimes" yaml:"warning_times"`

	// GracePeriodSeconds is the window between the time-up warning and the
	// logout action.
	GracePeriodSeconds int `json:"gracePeriod" yaml:"grace_period_seconds"`

	PauseOnIdle     bool `json:"pauseOnIdle" yaml:"pause_on_idle"`
	KillOnViolation bool `json:"killOnViolation" yaml:"kill_on_violation"`
	NotifyParent    bool `json:"notifyParent" yaml:"notify_parent"`

	// IdleThresholdMs is the idle time after which a session counts as idle.
	IdleThresholdMs int `json:"idleThreshold" yaml:"idle_threshold_ms"`
}

// DefaultSettings returns the documented defaults applied when the persisted
// blob or YAML omits a sub-field.
func DefaultSettings() Settings {
	return Settings{
		MonitorIntervalMs:  30000,
		WarningTimes:       []int{15, 5, 1},
		GracePeriodSeconds: 60,
		PauseOnIdle:        true,
		KillOnViolation:    true,
		NotifyParent:       true,
		IdleThresholdMs:    300000,
	}
}

// MonitorInterval returns the monitor cadence as a duration.
func (s Settings) MonitorInterval() time.Duration {
	return time.Duration(s.MonitorIntervalMs) * time.Millisecond
}

// GracePeriod returns the logout grace window as a duration.
func (s Settings) GracePeriod() time.Duration {
	return time.Duration(s.GracePeriodSeconds) * time.Second
}

// IdleThreshold returns the idle cutoff as a duration.
func (s Settings) IdleThreshold() time.Duration {
	return time.Duration(s.IdleThresholdMs) * time.Millisecond
}

// Validate rejects settings a running supervisor could not honor.
func (s Settings) Validate() error {
	if s.MonitorIntervalMs < 1000 {
		return &ValidationError{Field: "monitorInterval", Err: fmt.Errorf("%w: must be at least 1000ms, got %d", ErrInvalidValue, s.MonitorIntervalMs)}
	}
	if s.GracePeriodSeconds < 0 {
		return &ValidationError{Field: "gracePeriod", Err: fmt.Errorf("%w: must be non-negative, got %d", ErrInvalidValue, s.GracePeriodSeconds)}
	}
	if s.IdleThresholdMs <= 0 {
		return &ValidationError{Field: "idleThreshold", Err: fmt.Errorf("%w: must be positive, got %d", ErrInvalidValue, s.IdleThresholdMs)}
	}
	if len(s.WarningTimes) == 0 {
		return &ValidationError{Field: "warningTimes", Err: fmt.Errorf("%w: at least one threshold required", ErrMissingRequiredField)}
	}
	prev := 0
	for i, t := range s.WarningTimes {
		if t <= 0 {
			return &ValidationError{Field: "warningTimes", Err: fmt.Errorf("%w: thresholds must be positive, got %d", ErrInvalidValue, t)}
		}
		if i > 0 && t >= prev {
			return &ValidationError{Field: "warningTimes", Err: fmt.Errorf("%w: thresholds must be strictly descending", ErrInvalidValue)}
		}
		prev = t
	}
	return nil
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	MonitorIntervalMs  *int   `json:"monitorInterval,omitempty"`
	WarningTimes       []int  `json:"warningTimes,omitempty"`
	GracePeriodSeconds *int   `json:"gracePeriod,omitempty"`
	PauseOnIdle        *bool  `json:"pauseOnIdle,omitempty"`
	KillOnViolation    *bool  `json:"killOnViolation,omitempty"`
	NotifyParent       *bool  `json:"notifyParent,omitempty"`
	IdleThresholdMs    *int   `json:"idleThreshold,omitempty"`
}

// Apply returns a copy of s with the patch applied. The receiver is not
// modified; callers validate the result before committing it so a rejected
// patch leaves state untouched.
func (p SettingsPatch) Apply(s Settings) Settings {
	out := s
	out.WarningTimes = append([]int(nil), s.WarningTimes...)
	if p.MonitorIntervalMs != nil {
		out.MonitorIntervalMs = *p.MonitorIntervalMs
	}
	if p.WarningTimes != nil {
		out.WarningTimes = append([]int(nil), p.WarningTimes...)
	}
	if p.GracePeriodSeconds != nil {
		out.GracePeriodSeconds = *p.GracePeriodSeconds
	}
	if p.PauseOnIdle != nil {
		out.PauseOnIdle = *p.PauseOnIdle
	}
	if p.KillOnViolation != nil {
		out.KillOnViolation = *p.KillOnViolation
	}
	if p.NotifyParent != nil {
		out.NotifyParent = *p.NotifyParent
	}
	if p.IdleThresholdMs != nil {
		out.IdleThresholdMs = *p.IdleThresholdMs
	}
	return out
}
