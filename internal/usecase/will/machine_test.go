package will

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sileme/sileme-backend/internal/adapter/ledger"
	"github.com/sileme/sileme-backend/internal/adapter/repository/memory"
	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/platform/clock"
	"github.com/sileme/sileme-backend/internal/platform/metrics"
	"github.com/sileme/sileme-backend/internal/usecase/executor"
	"github.com/sileme/sileme-backend/internal/usecase/intent"
	"github.com/sileme/sileme-backend/internal/usecase/sentinel"
)

const (
	agentAddr = "0x9999999999999999999999999999999999999999"
	addrAlice = "0x1111111111111111111111111111111111111111"
	addrBob   = "0x2222222222222222222222222222222222222222"
	addrCarol = "0x3333333333333333333333333333333333333333"

	oneUnit = "1000000000000000000"
	day     = 24 * time.Hour
)

var epoch = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// MockInterpreter is a mock implementation of IntentInterpreter for testing
type MockInterpreter struct {
	mock.Mock
}

func (m *MockInterpreter) Interpret(ctx context.Context, text, locale string) ([]domain.Beneficiary, error) {
	args := m.Called(ctx, text, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Beneficiary), args.Error(1)
}

// MockScanner is a mock implementation of SentinelScanner for testing
type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) Scan(ctx context.Context, handle, manifesto, locale string) (domain.SentinelReport, error) {
	args := m.Called(ctx, handle, manifesto, locale)
	return args.Get(0).(domain.SentinelReport), args.Error(1)
}

type fixture struct {
	clk         *clock.Manual
	ledger      *ledger.Simulated
	history     *memory.HistoryRepository
	journal     *memory.EventJournal
	metrics     *metrics.Metrics
	interpreter *MockInterpreter
	scanner     *MockScanner
	machine     *Machine
}

func newFixture(t *testing.T, tweak ...func(*Config)) *fixture {
	t.Helper()

	cfg := Config{
		InactivityThresholdDays: 180,
		CountdownDuration:       30 * time.Second,
		GasReservePercent:       5,
		WatchInterval:           10 * time.Second,
		SentinelInterval:        30 * time.Second,
		AgentAddress:            agentAddr,
	}
	for _, fn := range tweak {
		fn(&cfg)
	}

	f := &fixture{
		clk:         clock.NewManual(epoch),
		ledger:      ledger.NewSimulated(agentAddr, decimal.RequireFromString(oneUnit), 0),
		history:     memory.NewHistoryRepository(domain.HistoryLimit),
		journal:     memory.NewEventJournal(0),
		metrics:     metrics.New(),
		interpreter: new(MockInterpreter),
		scanner:     new(MockScanner),
	}

	machine, err := NewMachine(cfg, Deps{
		Clock:    f.clk,
		Ledger:   f.ledger,
		Pipeline: executor.NewPipeline(f.history, f.clk, nil, f.metrics),
		Intent:   intent.NewService(f.interpreter, nil),
		Sentinel: sentinel.NewService(f.scanner, f.clk, nil),
		History:  f.history,
		Journal:  f.journal,
		Metrics:  f.metrics,
	})
	require.NoError(t, err)
	t.Cleanup(machine.Close)

	f.machine = machine
	return f
}

func heirs() []domain.Beneficiary {
	return []domain.Beneficiary{
		{Name: "Alice", Category: "Family", PercentageShare: 70, PayoutAddress: addrAlice},
		{Name: "Bob", Category: "Non-Profit", PercentageShare: 30, PayoutAddress: addrBob},
	}
}

// seal walks the machine from IDLE to MONITORING with a 70/30 will
func (f *fixture) seal(t *testing.T) *domain.PendingWill {
	t.Helper()
	ctx := context.Background()

	_, err := f.machine.EstablishIdentity(ctx, "@satoshi", "en")
	require.NoError(t, err)
	_, err = f.machine.LinkWallet(ctx, agentAddr)
	require.NoError(t, err)
	require.NoError(t, f.machine.SetBeneficiaries(ctx, heirs()))

	will, err := f.machine.SealWill(ctx)
	require.NoError(t, err)
	return will
}

func (f *fixture) triggers() float64 {
	total := 0.0
	for _, reason := range []string{ReasonInactivity, ReasonCountdown, ReasonManual} {
		total += testutil.ToFloat64(f.metrics.Triggers.WithLabelValues(reason))
	}
	return total
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewMachine_RejectsBadConfig(t *testing.T) {
	deps := Deps{
		Clock:    clock.NewManual(epoch),
		Ledger:   ledger.NewSimulated(agentAddr, decimal.Zero, 0),
		Pipeline: executor.NewPipeline(nil, clock.Fixed{T: epoch}, nil, nil),
	}

	_, err := NewMachine(Config{AgentAddress: agentAddr, CountdownDuration: time.Second}, deps)
	assert.ErrorContains(t, err, "inactivity threshold")

	_, err = NewMachine(Config{InactivityThresholdDays: 1, CountdownDuration: time.Second, AgentAddress: "nope"}, deps)
	assert.ErrorContains(t, err, "agent address")

	_, err = NewMachine(Config{InactivityThresholdDays: 1, CountdownDuration: time.Second, AgentAddress: agentAddr}, Deps{})
	assert.ErrorContains(t, err, "clock")
}

func TestLifecycle_CountdownExpiryToCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Equal(t, domain.ProtocolStatusIdle, f.machine.Status())
	will := f.seal(t)

	assert.Equal(t, domain.ProtocolStatusMonitoring, f.machine.Status())
	assert.Equal(t, domain.WillStatusPending, will.Status)
	assert.True(t, will.BalanceSnapshotAtSeal.Equal(amount(oneUnit)))
	assert.Equal(t, int64(30000), will.DurationMs())

	f.clk.Advance(10 * time.Second)
	snap := f.machine.Snapshot()
	assert.Equal(t, 20*time.Second, snap.CountdownLeft)
	assert.InDelta(t, 1.0/3.0, snap.CountdownProgress, 1e-9)

	// natural expiry trips the switch and prepares the plan
	f.clk.Advance(20 * time.Second)

	snap = f.machine.Snapshot()
	assert.Equal(t, domain.ProtocolStatusActivated, snap.Status)
	assert.Equal(t, ReasonCountdown, snap.TriggerReason)
	require.NotNil(t, snap.PendingWill)
	assert.Equal(t, domain.WillStatusExecuting, snap.PendingWill.Status)
	require.NotNil(t, snap.Plan)
	require.True(t, snap.Plan.IsValid)
	assert.True(t, snap.Plan.GasReserve.Equal(amount("50000000000000000")))
	assert.True(t, snap.Plan.Items[0].Amount.Equal(amount("665000000000000000")))
	assert.True(t, snap.Plan.Items[1].Amount.Equal(amount("285000000000000000")))

	result, err := f.machine.ConfirmExecution(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SucceededCount)
	assert.Equal(t, 0, result.FailedCount)

	snap = f.machine.Snapshot()
	assert.Equal(t, domain.ProtocolStatusExecuted, snap.Status)
	assert.Equal(t, domain.WillStatusCompleted, snap.PendingWill.Status)
	require.NotNil(t, snap.LastExecution)
	assert.Equal(t, 2, snap.LastExecution.SucceededCount)

	alice, _ := f.ledger.GetBalance(ctx, addrAlice)
	assert.True(t, alice.Equal(amount("665000000000000000")))
	agent, _ := f.ledger.GetBalance(ctx, agentAddr)
	assert.True(t, agent.Equal(amount("50000000000000000")), "gas reserve stays with the agent")

	history, err := f.machine.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Bob", history[0].BeneficiaryName, "history lists newest first")
	assert.Equal(t, "Alice", history[1].BeneficiaryName)

	assert.Equal(t, 1.0, f.triggers())

	// executed is terminal for heartbeats
	err = f.machine.Heartbeat(ctx)
	assert.ErrorIs(t, err, domain.ErrHeartbeatRejected)

	require.NoError(t, f.machine.AcknowledgeCompletion(ctx))
	assert.Nil(t, f.machine.Snapshot().PendingWill)
	assert.ErrorIs(t, f.machine.AcknowledgeCompletion(ctx), domain.ErrNoPendingWill)
	assert.Equal(t, domain.ProtocolStatusExecuted, f.machine.Status())
}

func TestSealWill_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("idle", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.SealWill(ctx)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("no funded wallet", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.EstablishIdentity(ctx, "@satoshi", "en")
		require.NoError(t, err)
		require.NoError(t, f.machine.SetBeneficiaries(ctx, heirs()))

		_, err = f.machine.SealWill(ctx)
		assert.ErrorIs(t, err, domain.ErrNoFundedWallet)

		// an empty wallet does not count
		_, err = f.machine.LinkWallet(ctx, addrCarol)
		require.NoError(t, err)
		_, err = f.machine.SealWill(ctx)
		assert.ErrorIs(t, err, domain.ErrNoFundedWallet)
		assert.Equal(t, domain.ProtocolStatusOnboarding, f.machine.Status())
	})

	t.Run("shares not hundred", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.EstablishIdentity(ctx, "@satoshi", "en")
		require.NoError(t, err)
		_, err = f.machine.LinkWallet(ctx, agentAddr)
		require.NoError(t, err)

		short := heirs()
		short[1].PercentageShare = 20
		require.NoError(t, f.machine.SetBeneficiaries(ctx, short))

		_, err = f.machine.SealWill(ctx)
		assert.ErrorIs(t, err, domain.ErrSharesNotHundred)
		assert.True(t, domain.IsValidation(err))
		assert.Equal(t, domain.ProtocolStatusOnboarding, f.machine.Status())
	})

	t.Run("already pending", func(t *testing.T) {
		f := newFixture(t)
		f.seal(t)

		_, err := f.machine.SealWill(ctx)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestLinkWallet_RejectsMalformedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.machine.EstablishIdentity(ctx, "@satoshi", "en")
	require.NoError(t, err)

	_, err = f.machine.LinkWallet(ctx, "0x1234")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = f.machine.EstablishIdentity(ctx, " ", "en")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

func TestCheckInactivity_StrictThresholdAndIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *Config) { c.CountdownDuration = 365 * day })
	f.seal(t)

	f.clk.Advance(180 * day)
	assert.False(t, f.machine.CheckInactivity(ctx), "exactly at the threshold is still alive")
	assert.Equal(t, domain.ProtocolStatusMonitoring, f.machine.Status())

	f.clk.Advance(time.Second)
	assert.True(t, f.machine.CheckInactivity(ctx))
	assert.Equal(t, domain.ProtocolStatusActivated, f.machine.Status())

	assert.False(t, f.machine.CheckInactivity(ctx))
	assert.False(t, f.machine.CheckInactivity(ctx))
	assert.Equal(t, 1.0, f.triggers())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Triggers.WithLabelValues(ReasonInactivity)))

	// the countdown was consumed by the inactivity trigger
	f.clk.Advance(365 * day)
	assert.Equal(t, 1.0, f.triggers())

	snap := f.machine.Snapshot()
	assert.Equal(t, domain.WillStatusExecuting, snap.PendingWill.Status)
	assert.Equal(t, time.Duration(0), snap.CountdownLeft)
}

func TestHeartbeat_ResetsSilenceOnlyWhileMonitoring(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *Config) { c.CountdownDuration = 365 * day })

	err := f.machine.Heartbeat(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	f.seal(t)
	f.clk.Advance(170 * day)
	require.NoError(t, f.machine.Heartbeat(ctx))

	f.clk.Advance(170 * day)
	assert.False(t, f.machine.CheckInactivity(ctx))
	assert.InDelta(t, 170.0, f.machine.Snapshot().DaysSilent, 1e-9)

	require.NoError(t, f.machine.ForceTrigger(ctx))
	err = f.machine.Heartbeat(ctx)
	assert.ErrorIs(t, err, domain.ErrHeartbeatRejected)
	assert.Equal(t, domain.ProtocolStatusActivated, f.machine.Status())
}

func TestCancelWill_BeforeExpiryNeverFires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)

	cancelled, err := f.machine.CancelWill(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.WillStatusCancelled, cancelled.Status)

	f.clk.Advance(time.Hour)

	snap := f.machine.Snapshot()
	assert.Equal(t, domain.ProtocolStatusMonitoring, snap.Status)
	assert.Nil(t, snap.PendingWill)
	assert.Equal(t, 0.0, f.triggers())

	_, err = f.machine.CancelWill(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPendingWill)

	// a new will may be sealed over the cancelled one
	will, err := f.machine.SealWill(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.WillStatusPending, will.Status)
}

func TestCancelWill_AfterTriggerIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)
	require.NoError(t, f.machine.ForceTrigger(ctx))

	will, err := f.machine.CancelWill(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.WillStatusExecuting, will.Status)
	assert.Equal(t, domain.ProtocolStatusActivated, f.machine.Status())
}

func TestForceTrigger_FiresOnceDespiteNaturalExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)

	require.NoError(t, f.machine.ForceTrigger(ctx))

	snap := f.machine.Snapshot()
	assert.Equal(t, domain.ProtocolStatusActivated, snap.Status)
	require.NotNil(t, snap.Plan, "plan is ready when ForceTrigger returns")
	assert.True(t, snap.Plan.IsValid)

	err := f.machine.ForceTrigger(ctx)
	assert.ErrorIs(t, err, domain.ErrAlreadyTriggered)

	f.clk.Advance(time.Minute)
	assert.Equal(t, 1.0, f.triggers())
}

func TestCancelPlan_RevertsToMonitoring(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)

	f.clk.Advance(30 * time.Second)
	require.Equal(t, domain.ProtocolStatusActivated, f.machine.Status())

	require.NoError(t, f.machine.CancelPlan(ctx))

	snap := f.machine.Snapshot()
	assert.Equal(t, domain.ProtocolStatusMonitoring, snap.Status)
	assert.Nil(t, snap.Plan)
	assert.Nil(t, snap.PendingWill)
	assert.Equal(t, f.clk.Now(), snap.LastActive)
	require.NoError(t, f.machine.Heartbeat(ctx))

	_, err := f.machine.ConfirmExecution(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// without a pending countdown a forced trigger trips directly, using the sealed snapshot
	require.NoError(t, f.machine.ForceTrigger(ctx))
	snap = f.machine.Snapshot()
	assert.Equal(t, ReasonManual, snap.TriggerReason)
	require.NotNil(t, snap.Plan)
	assert.Len(t, snap.Plan.Items, 2)
}

func TestConfirmExecution_PartialFailureStillExecuted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)
	f.ledger.FailTransfersTo(addrAlice, errors.New("recipient rejected"))

	require.NoError(t, f.machine.ForceTrigger(ctx))
	result, err := f.machine.ConfirmExecution(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SucceededCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, domain.TransferStatusFailed, result.Records[0].Status)
	assert.Equal(t, "recipient rejected", result.Records[0].ErrorDetail)
	assert.Equal(t, domain.TransferStatusSuccess, result.Records[1].Status)
	assert.Equal(t, domain.ProtocolStatusExecuted, f.machine.Status())

	events, err := f.machine.Events(ctx)
	require.NoError(t, err)
	assert.Contains(t, events[0].Details, "1 succeeded, 1 failed")
	assert.Equal(t, domain.EventDistribution, events[0].Kind)
}

func TestPreparePlan_InvalidBalanceAllowsRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)
	f.ledger.SetBalance(agentAddr, decimal.Zero)

	require.NoError(t, f.machine.ForceTrigger(ctx))

	snap := f.machine.Snapshot()
	assert.Equal(t, domain.ProtocolStatusActivated, snap.Status)
	require.NotNil(t, snap.Plan)
	assert.False(t, snap.Plan.IsValid)

	_, err := f.machine.ConfirmExecution(ctx)
	assert.ErrorIs(t, err, domain.ErrNoValidPlan)

	f.ledger.SetBalance(agentAddr, amount("2000"))
	plan, err := f.machine.PreparePlan(ctx)
	require.NoError(t, err)
	assert.True(t, plan.IsValid)
	assert.True(t, plan.TotalAmount.Equal(amount("1900")))

	_, err = f.machine.ConfirmExecution(ctx)
	require.NoError(t, err)
}

func TestSealedSnapshot_IgnoresLiveEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)

	require.NoError(t, f.machine.SetBeneficiaries(ctx, []domain.Beneficiary{
		{Name: "Carol", PercentageShare: 100, PayoutAddress: addrCarol},
	}))

	require.NoError(t, f.machine.ForceTrigger(ctx))
	snap := f.machine.Snapshot()

	require.Len(t, snap.Plan.Items, 2)
	assert.Equal(t, "Alice", snap.Plan.Items[0].Beneficiary.Name)
	assert.Equal(t, "Carol", snap.Beneficiaries[0].Name)
}

func TestConcurrentTriggers_TripExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)

	var wg sync.WaitGroup
	for i := range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_ = f.machine.ForceTrigger(ctx)
			case 1:
				f.machine.CheckInactivity(ctx)
			default:
				f.clk.Advance(200 * day)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, domain.ProtocolStatusActivated, f.machine.Status())
	assert.Equal(t, 1.0, f.triggers())
	assert.Equal(t, domain.WillStatusExecuting, f.machine.Snapshot().PendingWill.Status)
}

func TestInterpretManifesto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.machine.InterpretManifesto(ctx, "all to Alice")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.machine.EstablishIdentity(ctx, "@satoshi", "zh")
	require.NoError(t, err)

	f.interpreter.On("Interpret", mock.Anything, "70 to Alice 30 to Bob", "zh").Return(heirs(), nil)
	got, err := f.machine.InterpretManifesto(ctx, "70 to Alice 30 to Bob")
	require.NoError(t, err)
	assert.Equal(t, heirs(), got)
	assert.Equal(t, "70 to Alice 30 to Bob", f.machine.Snapshot().Manifesto)

	f.interpreter.On("Interpret", mock.Anything, "???", "zh").Return(nil, errors.New("quota exceeded"))
	got, err = f.machine.InterpretManifesto(ctx, "???")
	require.NoError(t, err)
	assert.True(t, intent.IsFallback(got))

	// the fallback address cannot be sealed
	_, err = f.machine.LinkWallet(ctx, agentAddr)
	require.NoError(t, err)
	_, err = f.machine.SealWill(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	events, err := f.machine.Events(ctx)
	require.NoError(t, err)
	assert.True(t, hasEvent(events, domain.EventAlert, "fallback beneficiary"))
}

func hasEvent(events []domain.Event, kind domain.EventKind, fragment string) bool {
	for _, e := range events {
		if e.Kind == kind && strings.Contains(e.Details, fragment) {
			return true
		}
	}
	return false
}

func TestScanSentinel_IsAdvisoryOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)

	threat := domain.SentinelReport{Status: domain.SentinelStatusThreatDetected, Evidence: "HELP I LOST MY WALLET"}
	f.scanner.On("Scan", mock.Anything, "@satoshi", "", "en").Return(threat, nil)

	report, err := f.machine.ScanSentinel(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SentinelStatusThreatDetected, report.Status)

	snap := f.machine.Snapshot()
	assert.Equal(t, domain.ProtocolStatusMonitoring, snap.Status)
	require.NotNil(t, snap.Sentinel)
	assert.Equal(t, "HELP I LOST MY WALLET", snap.Sentinel.Evidence)
	assert.Equal(t, 0.0, f.triggers())

	events, err := f.machine.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventAlert, events[0].Kind)
	assert.Contains(t, events[0].Details, "SENTINEL THREAT")
}

func TestRun_StopsWithContext(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.WatchInterval = time.Millisecond
		c.SentinelInterval = time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.machine.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// cancellingLedger cancels the confirming request after the first transfer
type cancellingLedger struct {
	domain.Ledger
	cancel context.CancelFunc
	once   sync.Once
}

func (l *cancellingLedger) Transfer(ctx context.Context, to string, amt decimal.Decimal) (string, error) {
	hash, err := l.Ledger.Transfer(ctx, to, amt)
	l.once.Do(l.cancel)
	return hash, err
}

func TestConfirmExecution_OutlivesCallerContext(t *testing.T) {
	f := newFixture(t)
	f.seal(t)
	require.NoError(t, f.machine.ForceTrigger(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.machine.ledger = &cancellingLedger{Ledger: f.ledger, cancel: cancel}

	result, err := f.machine.ConfirmExecution(ctx)
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, 2, result.SucceededCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, domain.ProtocolStatusExecuted, f.machine.Status())

	bob, _ := f.ledger.GetBalance(context.Background(), addrBob)
	assert.True(t, bob.Equal(amount("285000000000000000")))

	history, err := f.machine.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTrip_InactivityRecheckedUnderLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *Config) { c.CountdownDuration = 365 * day })
	f.seal(t)

	f.clk.Advance(181 * day)
	require.True(t, f.machine.monitor.Expired(f.clk.Now()))

	// a heartbeat lands between the expiry read and the trip
	require.NoError(t, f.machine.Heartbeat(ctx))
	assert.False(t, f.machine.trip(ctx, ReasonInactivity))

	snap := f.machine.Snapshot()
	assert.Equal(t, domain.ProtocolStatusMonitoring, snap.Status)
	assert.Empty(t, snap.TriggerReason)
	assert.Equal(t, domain.WillStatusPending, snap.PendingWill.Status)
	assert.Equal(t, 0.0, f.triggers())
}

func TestSetStatus_FollowsTransitionTable(t *testing.T) {
	f := newFixture(t)
	f.seal(t)

	f.machine.mu.Lock()
	err := f.machine.setStatus("jumping ahead", domain.ProtocolStatusExecuted)
	status := f.machine.status
	f.machine.mu.Unlock()

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.ProtocolStatusMonitoring, status)

	// replacing the identity after sealing is refused by the same table
	_, err = f.machine.EstablishIdentity(context.Background(), "@other", "en")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestForceTrigger_RecordedAsManual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)

	require.NoError(t, f.machine.ForceTrigger(ctx))

	assert.Equal(t, ReasonManual, f.machine.Snapshot().TriggerReason)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Triggers.WithLabelValues(ReasonManual)))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Triggers.WithLabelValues(ReasonCountdown)))

	// the next will expires naturally and is recorded as a countdown
	require.NoError(t, f.machine.CancelPlan(ctx))
	_, err := f.machine.SealWill(ctx)
	require.NoError(t, err)
	f.clk.Advance(30 * time.Second)

	assert.Equal(t, ReasonCountdown, f.machine.Snapshot().TriggerReason)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Triggers.WithLabelValues(ReasonCountdown)))
}

func TestCountdownExpiry_JournalsExecutionAfterTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seal(t)
	f.clk.Advance(30 * time.Second)

	events, err := f.machine.Events(ctx)
	require.NoError(t, err)

	started, tripped := -1, -1
	for i, e := range events {
		switch {
		case strings.Contains(e.Details, "Countdown complete"):
			started = i
		case strings.Contains(e.Details, "Dead man switch triggered"):
			tripped = i
		}
	}
	require.NotEqual(t, -1, started)
	require.NotEqual(t, -1, tripped)
	assert.Less(t, started, tripped, "newest first: execution start follows the trip")

	// a stale expiry of a consumed will journals nothing
	before := len(events)
	f.machine.onCountdownExpired(f.machine.Snapshot().PendingWill.ID)
	events, err = f.machine.Events(ctx)
	require.NoError(t, err)
	assert.Len(t, events, before)
}
