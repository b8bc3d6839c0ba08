package will

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/usecase/distribution"
	"github.com/sileme/sileme-backend/internal/usecase/intent"
)

// nativeDecimals is the smallest-unit exponent of the native token
const nativeDecimals = 18

// EstablishIdentity moves IDLE to ONBOARDING. While still onboarding the
// identity may be replaced.
func (m *Machine) EstablishIdentity(ctx context.Context, handle, locale string) (domain.Identity, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return domain.Identity{}, domain.NewValidationError(domain.ErrInvalidIdentity, "empty handle")
	}
	if locale == "" {
		locale = defaultLocale
	}

	m.mu.Lock()
	if m.status != domain.ProtocolStatusIdle && m.status != domain.ProtocolStatusOnboarding {
		status := m.status
		m.mu.Unlock()
		return domain.Identity{}, invalidTransition("establishing identity", status)
	}
	if err := m.setStatus("establishing identity", domain.ProtocolStatusOnboarding); err != nil {
		m.mu.Unlock()
		return domain.Identity{}, err
	}
	id := domain.Identity{Handle: handle, Locale: locale, EstablishedAt: m.clock.Now()}
	m.identity = &id
	m.mu.Unlock()

	m.emit(ctx, domain.EventHeartbeat, "Identity verified: %s", handle)
	return id, nil
}

// LinkWallet validates the address, reads its live balance and records it.
// Linking an already linked address refreshes its balance.
func (m *Machine) LinkWallet(ctx context.Context, address string) (domain.Wallet, error) {
	address = strings.TrimSpace(address)
	if !domain.IsValidAddress(address) {
		return domain.Wallet{}, domain.NewValidationError(domain.ErrInvalidAddress, "%q", address)
	}

	m.mu.Lock()
	status := m.status
	m.mu.Unlock()
	if status == domain.ProtocolStatusIdle {
		return domain.Wallet{}, invalidTransition("linking a wallet", status)
	}

	balance, err := m.ledger.GetBalance(ctx, address)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("read balance of %s: %w", address, err)
	}

	wallet := domain.Wallet{Address: address, Balance: balance, LinkedAt: m.clock.Now()}

	m.mu.Lock()
	replaced := false
	for i := range m.wallets {
		if strings.EqualFold(m.wallets[i].Address, address) {
			m.wallets[i].Balance = balance
			wallet = m.wallets[i]
			replaced = true
			break
		}
	}
	if !replaced {
		m.wallets = append(m.wallets, wallet)
	}
	m.mu.Unlock()

	m.emit(ctx, domain.EventChainTx, "Wallet linked: %s, balance %s",
		address, distribution.FormatUnits(balance, nativeDecimals, 4))
	return wallet, nil
}

// InterpretManifesto replaces the live manifesto and beneficiary list with the
// interpreter's reading of text. It never fails on collaborator errors: the
// documented fallback beneficiary is returned instead.
func (m *Machine) InterpretManifesto(ctx context.Context, text string) ([]domain.Beneficiary, error) {
	m.mu.Lock()
	status := m.status
	locale := m.locale()
	m.mu.Unlock()
	if status == domain.ProtocolStatusIdle {
		return nil, invalidTransition("interpreting a manifesto", status)
	}

	m.emit(ctx, domain.EventAIThinking, "Parsing natural language intent...")
	beneficiaries := m.intent.Interpret(ctx, text, locale)

	m.mu.Lock()
	m.manifesto = text
	m.beneficiaries = domain.CloneBeneficiaries(beneficiaries)
	m.mu.Unlock()

	if intent.IsFallback(beneficiaries) {
		m.emit(ctx, domain.EventAlert, "Manifesto interpretation failed, fallback beneficiary proposed")
	} else {
		m.emit(ctx, domain.EventAIThinking, "Analysis complete: identified %d beneficiaries", len(beneficiaries))
	}
	return domain.CloneBeneficiaries(beneficiaries), nil
}

// SetBeneficiaries replaces the live beneficiary list. Each entry must be
// well formed; the 100% total is only enforced when sealing. A sealed will
// keeps its own snapshot and is never affected.
func (m *Machine) SetBeneficiaries(ctx context.Context, beneficiaries []domain.Beneficiary) error {
	for i := range beneficiaries {
		if err := beneficiaries[i].Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	if m.status == domain.ProtocolStatusIdle {
		status := m.status
		m.mu.Unlock()
		return invalidTransition("editing beneficiaries", status)
	}
	m.beneficiaries = domain.CloneBeneficiaries(beneficiaries)
	m.mu.Unlock()

	m.emit(ctx, domain.EventAIThinking, "Beneficiaries updated: %d entries", len(beneficiaries))
	return nil
}

// SealWill snapshots the live beneficiaries into a PendingWill and starts its countdown
// Logic:
//  1. Allowed from ONBOARDING, EXECUTED, or MONITORING without a pending countdown
//  2. Requires a funded wallet and shares summing to exactly 100
//  3. Resets proof-of-life and enters MONITORING
func (m *Machine) SealWill(ctx context.Context) (*domain.PendingWill, error) {
	m.mu.Lock()

	// 1. Status guard
	switch m.status {
	case domain.ProtocolStatusOnboarding, domain.ProtocolStatusExecuted:
	case domain.ProtocolStatusMonitoring:
		if m.pending != nil && m.pending.Status == domain.WillStatusPending {
			m.mu.Unlock()
			return nil, domain.NewValidationError(domain.ErrInvalidTransition, "a will is already pending")
		}
	default:
		status := m.status
		m.mu.Unlock()
		return nil, invalidTransition("sealing a will", status)
	}
	if m.closed {
		m.mu.Unlock()
		return nil, domain.NewValidationError(domain.ErrInvalidTransition, "machine is closed")
	}

	// 2. Funded wallet and shares
	balance := decimal.Zero
	for _, w := range m.wallets {
		if w.Funded() {
			balance = balance.Add(w.Balance)
		}
	}
	if !balance.IsPositive() {
		m.mu.Unlock()
		return nil, domain.NewValidationError(domain.ErrNoFundedWallet, "link a wallet with a positive balance first")
	}

	now := m.clock.Now()
	will, err := domain.NewPendingWill(m.beneficiaries, m.manifesto, balance, now, m.cfg.CountdownDuration)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	// 3. Enter MONITORING and arm the countdown
	if err := m.setStatus("sealing a will", domain.ProtocolStatusMonitoring); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.pending = will
	m.sealed = domain.CloneBeneficiaries(will.Beneficiaries)
	m.plan = nil
	m.triggerReason = ""
	m.forced = false
	m.monitor.RecordHeartbeat(now)

	willID := will.ID
	m.handle = m.timer.Start(m.cfg.CountdownDuration, func() {
		m.onCountdownExpired(willID)
	})
	out := will.Clone()
	m.mu.Unlock()

	m.metrics.IncWillSealed()
	m.emit(ctx, domain.EventChainTx, "Will sealed: %d beneficiaries, countdown %s started",
		len(out.Beneficiaries), m.cfg.CountdownDuration)
	m.emit(ctx, domain.EventAIThinking, "Agent monitoring for vital signs...")
	return out, nil
}

// CancelWill withdraws the pending will before its countdown fires.
// Cancelling a will that already fired (or is executing) is a no-op and
// returns the will unchanged.
func (m *Machine) CancelWill(ctx context.Context) (*domain.PendingWill, error) {
	m.mu.Lock()

	if m.pending == nil || m.pending.Status.IsTerminal() {
		m.mu.Unlock()
		return nil, domain.NewValidationError(domain.ErrNoPendingWill, "nothing to cancel")
	}
	if m.pending.Status != domain.WillStatusPending {
		out := m.pending.Clone()
		m.mu.Unlock()
		return out, nil
	}
	// a false Cancel means the countdown fired first; its callback owns the will
	if m.handle == nil || !m.handle.Cancel() {
		out := m.pending.Clone()
		m.mu.Unlock()
		return out, nil
	}

	if err := m.pending.Transition(domain.WillStatusCancelled); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	out := m.pending.Clone()
	m.pending = nil
	m.handle = nil
	m.mu.Unlock()

	m.emit(ctx, domain.EventAlert, "Will %s cancelled before expiry", out.ID)
	return out, nil
}

// AcknowledgeCompletion releases a completed will
func (m *Machine) AcknowledgeCompletion(ctx context.Context) error {
	m.mu.Lock()
	if m.pending == nil || m.pending.Status != domain.WillStatusCompleted {
		m.mu.Unlock()
		return domain.NewValidationError(domain.ErrNoPendingWill, "no completed will to acknowledge")
	}
	id := m.pending.ID
	m.pending = nil
	m.handle = nil
	m.mu.Unlock()

	m.emit(ctx, domain.EventDistribution, "Will %s acknowledged", id)
	return nil
}
