package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, 30*time.Second, s.MonitorInterval())
	assert.Equal(t, time.Minute, s.GracePeriod())
	assert.Equal(t, 5*time.Minute, s.IdleThreshold())
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(s *Settings) {},
		},
		{
			name:    "interval below floor",
			mutate:  func(s *Settings) { s.MonitorIntervalMs = 500 },
			wantErr: "monitorInterval",
		},
		{
			name:    "negative grace period",
			mutate:  func(s *Settings) { s.GracePeriodSeconds = -1 },
			wantErr: "gracePeriod",
		},
		{
			name:   "zero grace period is allowed",
			mutate: func(s *Settings) { s.GracePeriodSeconds = 0 },
		},
		{
			name:    "zero idle threshold",
			mutate:  func(s *Settings) { s.IdleThresholdMs = 0 },
			wantErr: "idleThreshold",
		},
		{
			name:    "empty warning ladder",
			mutate:  func(s *Settings) { s.WarningTimes = nil },
			wantErr: "warningTimes",
		},
		{
			name:    "non-descending warning ladder",
			mutate:  func(s *Settings) { s.WarningTimes = []int{5, 15, 1} },
			wantErr: "warningTimes",
		},
		{
			name:    "duplicate warning thresholds",
			mutate:  func(s *Settings) { s.WarningTimes = []int{15, 15, 1} },
			wantErr: "warningTimes",
		},
		{
			name:    "non-positive warning threshold",
			mutate:  func(s *Settings) { s.WarningTimes = []int{15, 0} },
			wantErr: "warningTimes",
		},
		{
			name:   "single-entry ladder",
			mutate: func(s *Settings) { s.WarningTimes = []int{1} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)

			err := s.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSettingsPatchApply(t *testing.T) {
	base := DefaultSettings()
	interval := 45000
	notify := false

	out := SettingsPatch{
		MonitorIntervalMs: &interval,
		NotifyParent:      &notify,
		WarningTimes:      []int{10, 2},
	}.Apply(base)

	assert.Equal(t, 45000, out.MonitorIntervalMs)
	assert.False(t, out.NotifyParent)
	assert.Equal(t, []int{10, 2}, out.WarningTimes)

	// Untouched fields keep their values.
	assert.Equal(t, base.GracePeriodSeconds, out.GracePeriodSeconds)
	assert.Equal(t, base.PauseOnIdle, out.PauseOnIdle)
	assert.Equal(t, base.IdleThresholdMs, out.IdleThresholdMs)
}

func TestSettingsPatchApplyDoesNotMutateReceiver(t *testing.T) {
	base := DefaultSettings()

	out := SettingsPatch{WarningTimes: []int{10}}.Apply(base)
	out.WarningTimes[0] = 99

	assert.Equal(t, []int{15, 5, 1}, base.WarningTimes)
}

func TestSettingsPatchEmptyIsNoop(t *testing.T) {
	base := DefaultSettings()

	out := SettingsPatch{}.Apply(base)

	assert.Equal(t, base, out)
}
