package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryLimit is the number of most recent transfer records kept by history stores
const HistoryLimit = 50

// TransferStatus represents the outcome of one attempted transfer
type TransferStatus string

const (
	TransferStatusSuccess TransferStatus = "success"
	TransferStatusPending TransferStatus = "pending"
	TransferStatusFailed  TransferStatus = "failed"
)

// TransferRecord is an append-only audit entry, one per attempted DistributionItem
// A retried transfer produces a new record, never an update.
type TransferRecord struct {
	ID              uuid.UUID
	TxHash          string
	From            string
	To              string
	Amount          decimal.Decimal
	Timestamp       time.Time
	Status          TransferStatus
	BeneficiaryName string
	ErrorDetail     string
}

// Validate ensures the record adheres to domain rules
// Returns an error if validation fails
func (r *TransferRecord) Validate() error {
	if r.To == "" {
		return errors.New("transfer record must have a recipient")
	}

	if r.Amount.LessThan(decimal.Zero) {
		return errors.New("transfer amount cannot be negative")
	}

	switch r.Status {
	case TransferStatusSuccess:
		if r.TxHash == "" {
			return errors.New("successful transfer must carry a tx hash")
		}
	case TransferStatusFailed:
		if r.ErrorDetail == "" {
			return errors.New("failed transfer must carry an error detail")
		}
	case TransferStatusPending:
	default:
		return errors.New("transfer status must be success, pending or failed")
	}

	return nil
}
