package will

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/usecase/distribution"
	"github.com/sileme/sileme-backend/internal/usecase/executor"
)

// Heartbeat records proof-of-life. It is only accepted while MONITORING;
// once the switch has tripped it is rejected.
func (m *Machine) Heartbeat(ctx context.Context) error {
	now := m.clock.Now()

	m.mu.Lock()
	switch {
	case m.status.Tripped():
		status := m.status
		m.mu.Unlock()
		return domain.NewValidationError(domain.ErrHeartbeatRejected, "status is %s", status)
	case m.status != domain.ProtocolStatusMonitoring:
		status := m.status
		m.mu.Unlock()
		return invalidTransition("heartbeat", status)
	}
	m.monitor.RecordHeartbeat(now)
	m.mu.Unlock()

	m.metrics.IncHeartbeat()
	m.metrics.SetDaysSilent(0)
	m.emit(ctx, domain.EventHeartbeat, "Proof of life verified. Timer reset.")
	return nil
}

// CheckInactivity compares the silence against the threshold and trips the
// switch when it is strictly exceeded. It reports whether this call tripped it;
// repeated checks while already ACTIVATED return false.
func (m *Machine) CheckInactivity(ctx context.Context) bool {
	now := m.clock.Now()
	days := m.monitor.DaysSilent(now)
	m.metrics.SetDaysSilent(days)

	if m.Status() != domain.ProtocolStatusMonitoring {
		return false
	}
	if !m.monitor.Expired(now) {
		m.logger.DebugContext(ctx, "subject alive",
			"days_silent", days,
			"threshold_days", m.monitor.ThresholdDays(),
		)
		return false
	}

	if !m.trip(ctx, ReasonInactivity) {
		return false
	}
	m.emit(ctx, domain.EventAIThinking, "Vital signs monitor: heartbeat lost for %.1f days (threshold %.0f)",
		days, m.monitor.ThresholdDays())
	m.preparePlanAfterTrip(ctx)
	return true
}

// ForceTrigger expires the pending countdown immediately. The countdown
// callback runs synchronously, so the plan is prepared when this returns.
// Without a pending countdown the switch is tripped directly.
func (m *Machine) ForceTrigger(ctx context.Context) error {
	m.mu.Lock()
	if m.status != domain.ProtocolStatusMonitoring {
		status := m.status
		m.mu.Unlock()
		if status.Tripped() {
			return domain.NewValidationError(domain.ErrAlreadyTriggered, "status is %s", status)
		}
		return invalidTransition("forcing a trigger", status)
	}
	handle := m.handle
	pending := m.pending != nil && m.pending.Status == domain.WillStatusPending
	if pending && handle != nil {
		m.forced = true
	}
	m.mu.Unlock()

	if !pending || handle == nil {
		if !m.trip(ctx, ReasonManual) {
			return domain.NewValidationError(domain.ErrAlreadyTriggered, "switch tripped concurrently")
		}
		m.preparePlanAfterTrip(ctx)
		return nil
	}

	if !handle.ForceExpireNow() {
		m.mu.Lock()
		m.forced = false
		m.mu.Unlock()
		return domain.NewValidationError(domain.ErrAlreadyTriggered, "countdown already fired or was cancelled")
	}
	return nil
}

// onCountdownExpired is the single callback of a will's countdown handle
func (m *Machine) onCountdownExpired(willID uuid.UUID) {
	ctx := m.ctx

	m.mu.Lock()
	stale := m.pending == nil || m.pending.ID != willID || m.status != domain.ProtocolStatusMonitoring
	reason := ReasonCountdown
	if m.forced {
		reason = ReasonManual
	}
	m.mu.Unlock()
	if stale {
		m.logger.InfoContext(ctx, "ignoring expiry of a consumed will", "will_id", willID)
		return
	}

	if !m.trip(ctx, reason) {
		return
	}
	m.emit(ctx, domain.EventChainTx, "Countdown complete. Initiating will execution...")
	m.preparePlanAfterTrip(ctx)
}

// trip is the single MONITORING -> ACTIVATED transition shared by every
// trigger. It reports false when the switch was not in MONITORING, or when an
// inactivity trip finds a heartbeat recorded since the expiry was read.
func (m *Machine) trip(ctx context.Context, reason string) bool {
	now := m.clock.Now()

	m.mu.Lock()
	if m.status != domain.ProtocolStatusMonitoring {
		m.mu.Unlock()
		return false
	}
	if reason == ReasonInactivity && !m.monitor.Expired(now) {
		m.mu.Unlock()
		return false
	}
	if err := m.setStatus("tripping the switch", domain.ProtocolStatusActivated); err != nil {
		m.mu.Unlock()
		return false
	}

	m.triggerEpoch++
	m.triggerReason = reason
	m.forced = false
	m.plan = nil

	// any trigger consumes the pending will
	if m.pending != nil && m.pending.Status == domain.WillStatusPending {
		if reason == ReasonInactivity && m.handle != nil {
			m.handle.Cancel()
		}
		if err := m.pending.Transition(domain.WillStatusExecuting); err != nil {
			m.logger.ErrorContext(ctx, "pending will refused to execute", "error", err)
		}
	}
	m.mu.Unlock()

	m.metrics.IncTrigger(reason)
	m.emit(ctx, domain.EventAlert, "CRITICAL: Dead man switch triggered (%s)", reason)
	return true
}

func (m *Machine) preparePlanAfterTrip(ctx context.Context) {
	m.emit(ctx, domain.EventAIThinking, "Executor agent: constructing distribution plan...")
	if _, err := m.PreparePlan(ctx); err != nil {
		m.logger.WarnContext(ctx, "distribution plan not ready", "error", err)
	}
}

// PreparePlan recomputes the distribution plan from the live balance and the
// sealed beneficiary snapshot. An invalid plan (for example a drained wallet)
// is stored and returned together with a ValidationError; the machine stays
// ACTIVATED so the operator can retry.
func (m *Machine) PreparePlan(ctx context.Context) (domain.DistributionPlan, error) {
	ctx, span := m.tracer.Start(ctx, "will.PreparePlan")
	defer span.End()

	m.mu.Lock()
	if m.status != domain.ProtocolStatusActivated {
		status := m.status
		m.mu.Unlock()
		return domain.DistributionPlan{}, invalidTransition("preparing a plan", status)
	}
	if m.inFlight {
		m.mu.Unlock()
		return domain.DistributionPlan{}, domain.NewValidationError(domain.ErrExecutionInFlight, "plan is locked while executing")
	}
	beneficiaries := m.sealed
	if m.pending != nil {
		beneficiaries = m.pending.Beneficiaries
	}
	beneficiaries = domain.CloneBeneficiaries(beneficiaries)
	epoch := m.triggerEpoch
	m.mu.Unlock()

	var plan domain.DistributionPlan
	balance, err := m.ledger.GetBalance(ctx, m.cfg.AgentAddress)
	if err != nil {
		span.RecordError(err)
		plan = domain.DistributionPlan{
			Balance:            decimal.Zero,
			GasReserve:         decimal.Zero,
			TotalDistributable: decimal.Zero,
			TotalAmount:        decimal.Zero,
			Items:              []domain.DistributionItem{},
			InvalidReason:      "balance unavailable: " + err.Error(),
		}
	} else {
		plan = distribution.Calculate(balance.String(), beneficiaries, m.cfg.GasReservePercent)
	}
	span.SetAttributes(
		attribute.Bool("plan.valid", plan.IsValid),
		attribute.Int("plan.items", len(plan.Items)),
	)

	m.mu.Lock()
	// a cancel or a newer trigger in the meantime makes this plan stale
	if m.status != domain.ProtocolStatusActivated || m.triggerEpoch != epoch {
		m.mu.Unlock()
		return plan, domain.NewValidationError(domain.ErrNoValidPlan, "trigger was superseded while computing the plan")
	}
	stored := plan.Clone()
	m.plan = &stored
	m.mu.Unlock()

	m.metrics.ObservePlan(plan.IsValid)
	if !plan.IsValid {
		m.emit(ctx, domain.EventAlert, "Distribution plan invalid: %s", plan.InvalidReason)
		return plan, domain.NewValidationError(domain.ErrNoValidPlan, "%s", plan.InvalidReason)
	}

	m.emit(ctx, domain.EventDistribution, "Plan ready: %s to %d beneficiaries (rounding loss %s)",
		distribution.FormatUnits(plan.TotalAmount, nativeDecimals, 4), len(plan.Items), plan.RoundingLoss())
	return plan, nil
}

// ConfirmExecution runs the presented plan through the execution pipeline.
// The machine reaches EXECUTED even when some transfers fail; the failed
// subset is reported in the result.
func (m *Machine) ConfirmExecution(ctx context.Context) (*executor.Result, error) {
	ctx, span := m.tracer.Start(ctx, "will.ConfirmExecution")
	defer span.End()

	m.mu.Lock()
	if m.status != domain.ProtocolStatusActivated {
		status := m.status
		m.mu.Unlock()
		return nil, invalidTransition("confirming execution", status)
	}
	if m.inFlight {
		m.mu.Unlock()
		return nil, domain.NewValidationError(domain.ErrExecutionInFlight, "confirmation already in progress")
	}
	if m.plan == nil || !m.plan.IsValid {
		m.mu.Unlock()
		return nil, domain.NewValidationError(domain.ErrNoValidPlan, "prepare a valid plan before confirming")
	}
	plan := m.plan.Clone()
	m.inFlight = true
	m.mu.Unlock()

	// once started the batch outlives the confirming request
	ctx = context.WithoutCancel(ctx)

	m.emit(ctx, domain.EventDistribution, "Executor agent activated. Initiating distribution...")
	result, err := m.pipeline.Execute(ctx, plan, m.cfg.AgentAddress, m.ledger)

	m.mu.Lock()
	m.inFlight = false
	if err != nil {
		m.mu.Unlock()
		span.RecordError(err)
		m.emit(ctx, domain.EventAlert, "Cannot execute distribution: %v", err)
		return nil, err
	}

	if serr := m.setStatus("confirming execution", domain.ProtocolStatusExecuted); serr != nil {
		m.mu.Unlock()
		return nil, serr
	}
	if m.pending != nil && m.pending.Status == domain.WillStatusExecuting {
		if terr := m.pending.Transition(domain.WillStatusCompleted); terr != nil {
			m.logger.ErrorContext(ctx, "will refused to complete", "error", terr)
		}
	}
	m.lastExecution = &ExecutionSummary{
		Records:        append([]domain.TransferRecord(nil), result.Records...),
		SucceededCount: result.SucceededCount,
		FailedCount:    result.FailedCount,
		FinishedAt:     m.clock.Now(),
	}
	m.mu.Unlock()

	span.SetAttributes(
		attribute.Int("result.succeeded", result.SucceededCount),
		attribute.Int("result.failed", result.FailedCount),
	)
	for _, rec := range result.Records {
		if rec.Status == domain.TransferStatusSuccess {
			m.emit(ctx, domain.EventChainTx, "TX success to %s: %s", rec.BeneficiaryName, rec.TxHash)
		} else {
			m.emit(ctx, domain.EventAlert, "Failed to send to %s: %s", rec.BeneficiaryName, rec.ErrorDetail)
		}
	}
	m.emit(ctx, domain.EventDistribution, "Distribution complete: %d succeeded, %d failed",
		result.SucceededCount, result.FailedCount)

	m.refreshWallets(ctx)
	return result, nil
}

// CancelPlan reverts a trip: the operator proved they are alive after all.
// The presented plan and the consumed will are dropped, proof-of-life is
// reset and the machine returns to MONITORING.
func (m *Machine) CancelPlan(ctx context.Context) error {
	now := m.clock.Now()

	m.mu.Lock()
	if m.status != domain.ProtocolStatusActivated {
		status := m.status
		m.mu.Unlock()
		return invalidTransition("cancelling a plan", status)
	}
	if m.inFlight {
		m.mu.Unlock()
		return domain.NewValidationError(domain.ErrExecutionInFlight, "distribution already started")
	}
	if err := m.setStatus("cancelling a plan", domain.ProtocolStatusMonitoring); err != nil {
		m.mu.Unlock()
		return err
	}
	m.triggerEpoch++
	m.triggerReason = ""
	m.plan = nil
	m.pending = nil
	m.handle = nil
	m.monitor.RecordHeartbeat(now)
	m.mu.Unlock()

	m.metrics.SetDaysSilent(0)
	m.emit(ctx, domain.EventAlert, "Distribution cancelled by operator. Monitoring resumed.")
	return nil
}

// refreshWallets re-reads the balance of every linked wallet
func (m *Machine) refreshWallets(ctx context.Context) {
	m.mu.Lock()
	addresses := make([]string, len(m.wallets))
	for i, w := range m.wallets {
		addresses[i] = w.Address
	}
	m.mu.Unlock()

	for _, addr := range addresses {
		balance, err := m.ledger.GetBalance(ctx, addr)
		if err != nil {
			m.logger.WarnContext(ctx, "failed to refresh wallet balance", "address", addr, "error", err)
			continue
		}
		m.mu.Lock()
		for i := range m.wallets {
			if m.wallets[i].Address == addr {
				m.wallets[i].Balance = balance
			}
		}
		m.mu.Unlock()
	}
}
