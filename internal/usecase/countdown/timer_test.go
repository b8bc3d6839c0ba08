package countdown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sileme/sileme-backend/internal/platform/clock"
)

var epoch = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestStart_FiresOnceAtExpiry(t *testing.T) {
	clk := clock.NewManual(epoch)
	var calls atomic.Int32

	h := New(clk).Start(30*time.Second, func() { calls.Add(1) })

	clk.Advance(29 * time.Second)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, time.Second, h.Remaining(clk.Now()))

	clk.Advance(time.Second)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, h.Fired())

	clk.Advance(time.Hour)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, time.Duration(0), h.Remaining(clk.Now()))
}

func TestCancel_BeforeExpiryNeverFires(t *testing.T) {
	clk := clock.NewManual(epoch)
	called := false

	h := New(clk).Start(30*time.Second, func() { called = true })
	clk.Advance(10 * time.Second)

	require.True(t, h.Cancel())
	clk.Advance(time.Minute)

	assert.False(t, called)
	assert.True(t, h.Cancelled())
	assert.False(t, h.ForceExpireNow())
	assert.False(t, called)
}

func TestCancel_AfterFireReturnsFalse(t *testing.T) {
	clk := clock.NewManual(epoch)
	h := New(clk).Start(time.Second, func() {})

	clk.Advance(time.Second)

	assert.False(t, h.Cancel())
	assert.True(t, h.Fired())
	assert.False(t, h.Cancelled())
}

func TestForceExpireNow_RunsSynchronouslyAndOnlyOnce(t *testing.T) {
	clk := clock.NewManual(epoch)
	var calls atomic.Int32

	h := New(clk).Start(30*time.Second, func() { calls.Add(1) })

	assert.True(t, h.ForceExpireNow())
	assert.Equal(t, int32(1), calls.Load())

	// the natural expiry must not deliver a second callback
	clk.Advance(time.Minute)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, h.ForceExpireNow())
}

func TestForceExpireNow_RacesNaturalExpiry(t *testing.T) {
	var calls atomic.Int32
	h := New(clock.Real{}).Start(time.Millisecond, func() { calls.Add(1) })

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ForceExpireNow()
		}()
	}
	wg.Wait()

	assert.Eventually(t, h.Fired, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProgressFraction(t *testing.T) {
	clk := clock.NewManual(epoch)
	h := New(clk).Start(40*time.Second, func() {})

	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{name: "before start", at: epoch.Add(-time.Second), want: 0},
		{name: "at start", at: epoch, want: 0},
		{name: "quarter", at: epoch.Add(10 * time.Second), want: 0.25},
		{name: "complete", at: epoch.Add(40 * time.Second), want: 1},
		{name: "past expiry clamps", at: epoch.Add(time.Hour), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, h.ProgressFraction(tt.at), 1e-9)
		})
	}

	assert.Equal(t, epoch.Add(40*time.Second), h.ExpiresAt())
	assert.Equal(t, 40*time.Second, h.Duration())
	assert.Equal(t, epoch, h.StartedAt())
}

func TestStart_ZeroDurationFiresImmediately(t *testing.T) {
	clk := clock.NewManual(epoch)
	called := false

	h := New(clk).Start(0, func() { called = true })

	assert.True(t, called)
	assert.True(t, h.Fired())
	assert.InDelta(t, 1.0, h.ProgressFraction(epoch), 1e-9)
}
