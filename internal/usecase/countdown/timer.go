package countdown

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sileme/sileme-backend/internal/platform/clock"
)

const (
	stateArmed int32 = iota
	stateFired
	stateCancelled
)

// Timer creates cancellable single-shot countdowns
type Timer struct {
	sched clock.Scheduler
}

// New creates a Timer backed by the given scheduler
func New(sched clock.Scheduler) *Timer {
	return &Timer{sched: sched}
}

// Handle is one armed countdown. It fires its callback at most once, and never
// after a successful Cancel.
type Handle struct {
	clock     clock.Clock
	startedAt time.Time
	duration  time.Duration
	onExpire  func()
	state     atomic.Int32

	mu    sync.Mutex
	timer clock.Timer
}

// Start arms a countdown of d that calls onExpire when it elapses.
// A non-positive duration fires on the scheduler as soon as possible.
func (t *Timer) Start(d time.Duration, onExpire func()) *Handle {
	if d < 0 {
		d = 0
	}
	h := &Handle{
		clock:     t.sched,
		startedAt: t.sched.Now(),
		duration:  d,
		onExpire:  onExpire,
	}

	timer := t.sched.AfterFunc(d, func() { h.fire() })

	h.mu.Lock()
	h.timer = timer
	h.mu.Unlock()

	return h
}

// Cancel stops the countdown. It returns true only if the callback had not
// fired yet; after a true return the callback is guaranteed never to run.
func (h *Handle) Cancel() bool {
	if !h.state.CompareAndSwap(stateArmed, stateCancelled) {
		return false
	}
	h.stopTimer()
	return true
}

// ForceExpireNow fires the callback immediately, synchronously in the caller's
// goroutine. It returns false if the countdown already fired or was cancelled,
// so a pending natural expiry and a forced one never both run the callback.
func (h *Handle) ForceExpireNow() bool {
	if !h.fire() {
		return false
	}
	h.stopTimer()
	return true
}

// Remaining is the time left until natural expiry at now; zero once the
// countdown can no longer fire.
func (h *Handle) Remaining(now time.Time) time.Duration {
	if h.state.Load() != stateArmed {
		return 0
	}
	left := h.startedAt.Add(h.duration).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// ProgressFraction is elapsed/duration at now, clamped to [0,1]
func (h *Handle) ProgressFraction(now time.Time) float64 {
	if h.duration <= 0 {
		return 1
	}
	p := float64(now.Sub(h.startedAt)) / float64(h.duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// Fired reports whether the callback has run (or is running)
func (h *Handle) Fired() bool {
	return h.state.Load() == stateFired
}

// Cancelled reports whether Cancel won the race against expiry
func (h *Handle) Cancelled() bool {
	return h.state.Load() == stateCancelled
}

// StartedAt returns when the countdown was armed
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// Duration returns the armed duration
func (h *Handle) Duration() time.Duration {
	return h.duration
}

// ExpiresAt returns the natural expiry instant
func (h *Handle) ExpiresAt() time.Time {
	return h.startedAt.Add(h.duration)
}

func (h *Handle) fire() bool {
	if !h.state.CompareAndSwap(stateArmed, stateFired) {
		return false
	}
	if h.onExpire != nil {
		h.onExpire()
	}
	return true
}

func (h *Handle) stopTimer() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
}
