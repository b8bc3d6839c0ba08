package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger is the external chain collaborator
type Ledger interface {
	// GetBalance returns the current funds of address in smallest units
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// Transfer sends amount to address and returns the tx hash
	// It may block for a long time and must be safe to call sequentially
	Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error)
}

// IntentInterpreter turns a free-text testament into beneficiaries
type IntentInterpreter interface {
	Interpret(ctx context.Context, text, locale string) ([]Beneficiary, error)
}

// SentinelScanner looks for compromise or duress signals on a social handle
type SentinelScanner interface {
	Scan(ctx context.Context, handle, manifesto, locale string) (SentinelReport, error)
}

// HistoryRepository defines the interface for transfer history persistence operations
type HistoryRepository interface {
	// Append stores a record; the oldest records are evicted past HistoryLimit
	Append(ctx context.Context, record TransferRecord) error

	// List retrieves the most recent records, newest first
	List(ctx context.Context) ([]TransferRecord, error)
}

// EventPublisher receives protocol journal entries
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventRepository is the bounded protocol journal
type EventRepository interface {
	// Append stores an event; the oldest events are evicted past the journal limit
	Append(ctx context.Context, event Event) error

	// List retrieves the retained events, newest first
	List(ctx context.Context) ([]Event, error)
}
