package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WillStatus is the sub-status of a sealed will
type WillStatus string

const (
	WillStatusPending   WillStatus = "PENDING"
	WillStatusExecuting WillStatus = "EXECUTING"
	WillStatusCompleted WillStatus = "COMPLETED"
	WillStatusCancelled WillStatus = "CANCELLED"
)

var willTransitions = map[WillStatus][]WillStatus{
	WillStatusPending:   {WillStatusExecuting, WillStatusCancelled},
	WillStatusExecuting: {WillStatusCompleted},
}

// CanTransitionTo reports whether the sub-status may move to next
func (s WillStatus) CanTransitionTo(next WillStatus) bool {
	for _, allowed := range willTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s WillStatus) IsTerminal() bool {
	return s == WillStatusCompleted || s == WillStatusCancelled
}

// PendingWill represents a sealed will waiting for its countdown
// Owned exclusively by the will state machine. Beneficiaries is a snapshot,
// later edits to the live configuration never reach it.
type PendingWill struct {
	ID                    uuid.UUID
	Beneficiaries         []Beneficiary
	ManifestoSnapshot     string
	BalanceSnapshotAtSeal decimal.Decimal
	SealedAt              time.Time
	Duration              time.Duration
	Status                WillStatus
}

// NewPendingWill seals a snapshot of the given beneficiaries
func NewPendingWill(beneficiaries []Beneficiary, manifesto string, balance decimal.Decimal, sealedAt time.Time, duration time.Duration) (*PendingWill, error) {
	if err := ValidateShares(beneficiaries); err != nil {
		return nil, err
	}

	if balance.LessThanOrEqual(decimal.Zero) {
		return nil, NewValidationError(ErrZeroBalance, "cannot seal a will over an empty wallet")
	}

	return &PendingWill{
		ID:                    uuid.New(),
		Beneficiaries:         CloneBeneficiaries(beneficiaries),
		ManifestoSnapshot:     manifesto,
		BalanceSnapshotAtSeal: balance,
		SealedAt:              sealedAt,
		Duration:              duration,
		Status:                WillStatusPending,
	}, nil
}

// DurationMs is the countdown length in milliseconds
func (w *PendingWill) DurationMs() int64 {
	return w.Duration.Milliseconds()
}

// ExpiresAt is the natural expiry instant of the countdown
func (w *PendingWill) ExpiresAt() time.Time {
	return w.SealedAt.Add(w.Duration)
}

// Transition moves the will to next if the sub-status table allows it
func (w *PendingWill) Transition(next WillStatus) error {
	if !w.Status.CanTransitionTo(next) {
		return NewValidationError(ErrInvalidTransition, "will %s: %s -> %s", w.ID, w.Status, next)
	}
	w.Status = next
	return nil
}

// Clone returns a deep copy safe to hand to callers
func (w *PendingWill) Clone() *PendingWill {
	if w == nil {
		return nil
	}
	out := *w
	out.Beneficiaries = CloneBeneficiaries(w.Beneficiaries)
	return &out
}
