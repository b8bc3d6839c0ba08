package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sileme/sileme-backend/internal/platform/clock"
)

var epoch = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestDaysSinceActive(t *testing.T) {
	assert.InDelta(t, 0.0, DaysSinceActive(epoch, epoch), 1e-9)
	assert.InDelta(t, 1.5, DaysSinceActive(epoch.Add(36*time.Hour), epoch), 1e-9)
	assert.InDelta(t, 180.0, DaysSinceActive(epoch.AddDate(0, 0, 180), epoch), 1e-9)
}

func TestIsExpired_StrictGreaterThan(t *testing.T) {
	tests := []struct {
		name    string
		silence time.Duration
		want    bool
	}{
		{name: "below threshold", silence: 179 * day, want: false},
		{name: "exactly at threshold", silence: 180 * day, want: false},
		{name: "one second past threshold", silence: 180*day + time.Second, want: true},
		{name: "far past threshold", silence: 400 * day, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(epoch.Add(tt.silence), epoch, 180))
		})
	}
}

func TestMonitor_HeartbeatResetsSilence(t *testing.T) {
	monitor := NewMonitor(clock.Fixed{T: epoch}, 180)
	assert.Equal(t, epoch, monitor.LastActive())
	assert.Equal(t, 180.0, monitor.ThresholdDays())

	later := epoch.Add(200 * day)
	assert.True(t, monitor.Expired(later))
	assert.InDelta(t, 200.0, monitor.DaysSilent(later), 1e-9)

	monitor.RecordHeartbeat(later)

	assert.False(t, monitor.Expired(later))
	assert.InDelta(t, 0.0, monitor.DaysSilent(later), 1e-9)
	assert.Equal(t, later, monitor.LastActive())
}
