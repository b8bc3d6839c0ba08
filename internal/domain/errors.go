package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by the typed errors below.
// Callers match them with errors.Is.
var (
	ErrSharesNotHundred  = errors.New("beneficiary percentages must sum to 100")
	ErrInvalidShare      = errors.New("beneficiary percentage must be between 0 and 100")
	ErrNoBeneficiaries   = errors.New("at least one beneficiary is required")
	ErrInvalidAddress    = errors.New("invalid payout address")
	ErrZeroBalance       = errors.New("balance is zero")
	ErrInvalidBalance    = errors.New("balance must be a non-negative integer amount")
	ErrNoFundedWallet    = errors.New("no funded wallet linked")
	ErrInvalidTransition = errors.New("transition not allowed in current status")
	ErrHeartbeatRejected = errors.New("heartbeat rejected: switch already tripped")
	ErrNoPendingWill     = errors.New("no pending will")
	ErrNoValidPlan       = errors.New("no valid distribution plan")
	ErrExecutionInFlight = errors.New("distribution already executing")
	ErrAlreadyTriggered  = errors.New("will already triggered")
	ErrInvalidIdentity   = errors.New("identity handle is required")
)

// ValidationError is surfaced to the operator and blocks the offending transition.
// It is never fatal to the process.
type ValidationError struct {
	Err    error
	Reason string
}

// NewValidationError wraps err with a formatted reason
func NewValidationError(err error, format string, args ...any) *ValidationError {
	return &ValidationError{Err: err, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PreconditionError signals a programming-contract violation, e.g. running the
// execution pipeline without a valid plan or without a signer.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %s", e.Op, e.Reason)
}

// TransferError is a single failed ledger transfer. It is recorded on the
// TransferRecord and never aborts the rest of the batch.
type TransferError struct {
	Beneficiary string
	Address     string
	Err         error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer to %s (%s) failed: %v", e.Beneficiary, e.Address, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// CollaboratorError wraps a failure of an external collaborator (intent, sentinel).
// Services degrade these to safe defaults instead of propagating them.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPrecondition reports whether err is (or wraps) a PreconditionError
func IsPrecondition(err error) bool {
	var p *PreconditionError
	return errors.As(err, &p)
}
