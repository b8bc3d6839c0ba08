package activity

import (
	"sync"
	"time"

	"github.com/sileme/sileme-backend/internal/platform/clock"
)

const day = 24 * time.Hour

// DaysSinceActive returns the (fractional) days of silence since lastActive
func DaysSinceActive(now, lastActive time.Time) float64 {
	return float64(now.Sub(lastActive)) / float64(day)
}

// IsExpired reports whether the silence is strictly longer than thresholdDays
func IsExpired(now, lastActive time.Time, thresholdDays float64) bool {
	return DaysSinceActive(now, lastActive) > thresholdDays
}

// Monitor tracks the last proof-of-life against an inactivity threshold.
// It never schedules its own checks: the will machine decides the cadence,
// so the same logic serves the watcher loop and manual "ping agent" checks.
type Monitor struct {
	mu            sync.RWMutex
	lastActive    time.Time
	thresholdDays float64
}

// NewMonitor starts a monitor whose last proof-of-life is the clock's current time
func NewMonitor(c clock.Clock, thresholdDays float64) *Monitor {
	return &Monitor{
		lastActive:    c.Now(),
		thresholdDays: thresholdDays,
	}
}

// RecordHeartbeat resets the last-active timestamp
func (m *Monitor) RecordHeartbeat(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActive = now
}

// LastActive returns the last proof-of-life
func (m *Monitor) LastActive() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastActive
}

// ThresholdDays returns the configured inactivity threshold
func (m *Monitor) ThresholdDays() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholdDays
}

// DaysSilent is the "days silent" metric at now
func (m *Monitor) DaysSilent(now time.Time) float64 {
	return DaysSinceActive(now, m.LastActive())
}

// Expired reports whether the threshold has been exceeded at now
func (m *Monitor) Expired(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return IsExpired(now, m.lastActive, m.thresholdDays)
}
