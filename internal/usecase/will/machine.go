// Package will owns the protocol status of the dead man's switch.
//
// Every mutation of the protocol status and of the pending will goes through
// Machine.mu. Timer callbacks and operator actions race freely; races on the
// same pending will are settled by the countdown handle's single-fire guarantee.
package will

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/platform/clock"
	"github.com/sileme/sileme-backend/internal/platform/logger"
	"github.com/sileme/sileme-backend/internal/platform/metrics"
	"github.com/sileme/sileme-backend/internal/usecase/activity"
	"github.com/sileme/sileme-backend/internal/usecase/countdown"
	"github.com/sileme/sileme-backend/internal/usecase/executor"
	"github.com/sileme/sileme-backend/internal/usecase/intent"
	"github.com/sileme/sileme-backend/internal/usecase/sentinel"
)

// Trigger reasons, also used as metric labels
const (
	ReasonInactivity = "inactivity"
	ReasonCountdown  = "countdown"
	ReasonManual     = "manual"
)

const defaultLocale = "en"

// Config tunes the machine
type Config struct {
	InactivityThresholdDays float64
	CountdownDuration       time.Duration
	GasReservePercent       int
	WatchInterval           time.Duration
	SentinelInterval        time.Duration

	// AgentAddress is the account that holds the estate and signs transfers
	AgentAddress string
}

// Deps are the collaborators of the machine
type Deps struct {
	Clock    clock.Scheduler
	Ledger   domain.Ledger
	Pipeline *executor.Pipeline
	Intent   *intent.Service
	Sentinel *sentinel.Service
	History  domain.HistoryRepository
	Journal  domain.EventRepository
	Events   domain.EventPublisher
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// ExecutionSummary is the outcome of the last confirmed distribution
type ExecutionSummary struct {
	Records        []domain.TransferRecord
	SucceededCount int
	FailedCount    int
	FinishedAt     time.Time
}

// Snapshot is a consistent read of the whole protocol state
type Snapshot struct {
	Status            domain.ProtocolStatus
	Identity          *domain.Identity
	Wallets           []domain.Wallet
	Manifesto         string
	Beneficiaries     []domain.Beneficiary
	PendingWill       *domain.PendingWill
	LastActive        time.Time
	DaysSilent        float64
	ThresholdDays     float64
	CountdownLeft     time.Duration
	CountdownProgress float64
	TriggerReason     string
	Plan              *domain.DistributionPlan
	Sentinel          *domain.SentinelReport
	LastExecution     *ExecutionSummary
	ExecutionInFlight bool
}

// Machine is the authoritative will state machine
type Machine struct {
	cfg      Config
	clock    clock.Scheduler
	ledger   domain.Ledger
	pipeline *executor.Pipeline
	intent   *intent.Service
	sentinel *sentinel.Service
	history  domain.HistoryRepository
	journal  domain.EventRepository
	events   domain.EventPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	timer    *countdown.Timer
	monitor  *activity.Monitor

	// ctx outlives single requests; timer callbacks run under it
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	status        domain.ProtocolStatus
	identity      *domain.Identity
	wallets       []domain.Wallet
	manifesto     string
	beneficiaries []domain.Beneficiary
	pending       *domain.PendingWill
	handle        *countdown.Handle
	sealed        []domain.Beneficiary
	triggerReason string
	triggerEpoch  uint64
	forced        bool
	plan          *domain.DistributionPlan
	inFlight      bool
	lastExecution *ExecutionSummary
	lastReport    *domain.SentinelReport
	closed        bool
}

// NewMachine creates a machine in IDLE
func NewMachine(cfg Config, deps Deps) (*Machine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		return nil, errors.New("will machine requires a clock")
	}
	if deps.Ledger == nil {
		return nil, errors.New("will machine requires a ledger")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("will machine requires an execution pipeline")
	}

	log := logger.OrDefault(deps.Logger).With("component", "will")
	if deps.Intent == nil {
		deps.Intent = intent.NewService(nil, log)
	}
	if deps.Sentinel == nil {
		deps.Sentinel = sentinel.NewService(nil, deps.Clock, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		cfg:      cfg,
		clock:    deps.Clock,
		ledger:   deps.Ledger,
		pipeline: deps.Pipeline,
		intent:   deps.Intent,
		sentinel: deps.Sentinel,
		history:  deps.History,
		journal:  deps.Journal,
		events:   deps.Events,
		logger:   log,
		metrics:  deps.Metrics,
		tracer:   otel.Tracer("github.com/sileme/sileme-backend/internal/usecase/will"),
		timer:    countdown.New(deps.Clock),
		monitor:  activity.NewMonitor(deps.Clock, cfg.InactivityThresholdDays),
		ctx:      ctx,
		cancel:   cancel,
		status:   domain.ProtocolStatusIdle,
	}, nil
}

func (c Config) validate() error {
	var errs []error
	if c.InactivityThresholdDays <= 0 {
		errs = append(errs, errors.New("inactivity threshold must be positive"))
	}
	if c.CountdownDuration <= 0 {
		errs = append(errs, errors.New("countdown duration must be positive"))
	}
	if c.GasReservePercent < 0 || c.GasReservePercent >= 100 {
		errs = append(errs, fmt.Errorf("gas reserve percent must be in [0,100), got %d", c.GasReservePercent))
	}
	if !domain.IsValidAddress(c.AgentAddress) {
		errs = append(errs, fmt.Errorf("agent address %q is not a valid address", c.AgentAddress))
	}
	return errors.Join(errs...)
}

// Status returns the current protocol status
func (m *Machine) Status() domain.ProtocolStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Snapshot returns copies of the full state; callers may keep or mutate them
func (m *Machine) Snapshot() Snapshot {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Status:            m.status,
		Manifesto:         m.manifesto,
		Beneficiaries:     domain.CloneBeneficiaries(m.beneficiaries),
		PendingWill:       m.pending.Clone(),
		LastActive:        m.monitor.LastActive(),
		DaysSilent:        m.monitor.DaysSilent(now),
		ThresholdDays:     m.monitor.ThresholdDays(),
		TriggerReason:     m.triggerReason,
		ExecutionInFlight: m.inFlight,
	}
	if m.identity != nil {
		id := *m.identity
		snap.Identity = &id
	}
	if len(m.wallets) > 0 {
		snap.Wallets = append([]domain.Wallet(nil), m.wallets...)
	}
	if m.handle != nil {
		snap.CountdownLeft = m.handle.Remaining(now)
		snap.CountdownProgress = m.handle.ProgressFraction(now)
	}
	if m.plan != nil {
		plan := m.plan.Clone()
		snap.Plan = &plan
	}
	if m.lastReport != nil {
		report := *m.lastReport
		snap.Sentinel = &report
	}
	if m.lastExecution != nil {
		summary := *m.lastExecution
		summary.Records = append([]domain.TransferRecord(nil), m.lastExecution.Records...)
		snap.LastExecution = &summary
	}
	return snap
}

// History lists the most recent transfer records, newest first
func (m *Machine) History(ctx context.Context) ([]domain.TransferRecord, error) {
	if m.history == nil {
		return nil, nil
	}
	return m.history.List(ctx)
}

// Events lists the retained journal entries, newest first
func (m *Machine) Events(ctx context.Context) ([]domain.Event, error) {
	if m.journal == nil {
		return nil, nil
	}
	return m.journal.List(ctx)
}

// Close stops the pending countdown and cancels background work.
// The machine state is kept for inspection.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	if m.handle != nil {
		m.handle.Cancel()
	}
	m.mu.Unlock()

	m.cancel()
}

// emit journals, logs and publishes one protocol event
func (m *Machine) emit(ctx context.Context, kind domain.EventKind, format string, args ...any) {
	event := domain.NewEvent(kind, m.clock.Now(), fmt.Sprintf(format, args...))

	m.logger.Log(ctx, levelFor(kind), event.Details, "event", kind.String(), "event_id", event.ID)

	if m.journal != nil {
		if err := m.journal.Append(ctx, event); err != nil {
			m.logger.WarnContext(ctx, "failed to journal event", "event", kind.String(), "error", err)
		}
	}
	if m.events != nil {
		if err := m.events.Publish(ctx, event); err != nil {
			m.logger.WarnContext(ctx, "failed to publish event", "event", kind.String(), "error", err)
		}
	}
}

// levelFor maps each event kind to the log level it is reported at
func levelFor(kind domain.EventKind) slog.Level {
	switch kind {
	case domain.EventAlert:
		return slog.LevelWarn
	case domain.EventHeartbeat, domain.EventDistribution, domain.EventSentinel, domain.EventChainTx:
		return slog.LevelInfo
	case domain.EventAIThinking:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (m *Machine) locale() string {
	if m.identity == nil || m.identity.Locale == "" {
		return defaultLocale
	}
	return m.identity.Locale
}

// setStatus moves the protocol to next if the transition table allows it.
// Callers hold m.mu.
func (m *Machine) setStatus(op string, next domain.ProtocolStatus) error {
	if !m.status.CanTransitionTo(next) {
		return invalidTransition(op, m.status)
	}
	m.status = next
	return nil
}

func invalidTransition(op string, status domain.ProtocolStatus) error {
	return domain.NewValidationError(domain.ErrInvalidTransition, "%s not allowed while %s", op, status)
}
