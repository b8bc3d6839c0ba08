// Package clock provides the time source used by the will engine.
//
// Core packages never call time.Now or time.AfterFunc directly. They receive a
// Clock (reads) or a Scheduler (reads plus delayed callbacks) so tests can drive
// countdowns and inactivity checks deterministically with a Manual clock.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// Timer is a scheduled callback that can be stopped
type Timer interface {
	// Stop prevents the callback from running; false if it already ran or was stopped
	Stop() bool
}

// Scheduler is a Clock that can also run a callback after a delay
type Scheduler interface {
	Clock
	AfterFunc(d time.Duration, f func()) Timer
}

// Real uses the system time and runtime timers.
// Use only at application entry points (cmd/*).
type Real struct{}

// Now returns the current system time
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Fixed always returns the same instant
type Fixed struct {
	T time.Time
}

// Now returns the fixed time
func (c Fixed) Now() time.Time { return c.T }

// Func wraps a function as a Clock
type Func func() time.Time

// Now calls the wrapped function
func (f Func) Now() time.Time { return f() }

// Manual is a Scheduler whose time only moves when told to.
// Callbacks due at or before the new time run synchronously inside Advance/Set,
// in deadline order, on the caller's goroutine.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

// NewManual returns a Manual clock starting at t
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now returns the current manual time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f to run once the clock reaches now+d
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	t := &manualTimer{owner: m, at: m.now.Add(d), f: f}
	m.pending = append(m.pending, t)
	m.mu.Unlock()

	if d <= 0 {
		m.Advance(0)
	}
	return t
}

// Advance moves the clock forward by d and runs every callback that became due
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	due := m.collectDue()
	m.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Set jumps to t; moving backwards never runs callbacks
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	due := m.collectDue()
	m.mu.Unlock()

	for _, timer := range due {
		timer.f()
	}
}

// collectDue removes and returns due timers. Caller holds m.mu.
func (m *Manual) collectDue() []*manualTimer {
	var due, rest []*manualTimer
	for _, t := range m.pending {
		if !t.at.After(m.now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	m.pending = rest
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	return due
}

type manualTimer struct {
	owner *Manual
	at    time.Time
	f     func()
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	for i, p := range t.owner.pending {
		if p == t {
			t.owner.pending = append(t.owner.pending[:i], t.owner.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Verify interface compliance at compile time.
var (
	_ Scheduler = Real{}
	_ Scheduler = (*Manual)(nil)
	_ Clock     = Fixed{}
	_ Clock     = Func(nil)
)
