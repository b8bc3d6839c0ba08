package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/sileme/sileme-backend/internal/domain"
)

// ErrInsufficientFunds is returned when the agent cannot cover a transfer
var ErrInsufficientFunds = errors.New("insufficient funds")

// Simulated is an in-process ledger for development and tests.
// Transfers debit the agent account, credit the recipient and return a
// 0x-prefixed 32-byte hex hash.
type Simulated struct {
	agent   string
	limiter *rate.Limiter

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	failures map[string]error
	nonce    uint64
}

// NewSimulated creates a ledger whose agent account holds initial.
// transfersPerSec <= 0 disables throttling.
func NewSimulated(agent string, initial decimal.Decimal, transfersPerSec float64) *Simulated {
	limit := rate.Inf
	if transfersPerSec > 0 {
		limit = rate.Limit(transfersPerSec)
	}
	l := &Simulated{
		agent:    normalize(agent),
		limiter:  rate.NewLimiter(limit, 1),
		balances: make(map[string]decimal.Decimal),
		failures: make(map[string]error),
	}
	l.balances[l.agent] = initial
	return l
}

// GetBalance returns the balance of address; unknown addresses hold zero
func (l *Simulated) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if balance, ok := l.balances[normalize(address)]; ok {
		return balance, nil
	}
	return decimal.Zero, nil
}

// Transfer moves amount from the agent account to to
func (l *Simulated) Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("transfer throttled: %w", err)
	}
	if !domain.IsValidAddress(to) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, to)
	}
	if amount.IsNegative() {
		return "", errors.New("transfer amount cannot be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	recipient := normalize(to)
	if err, ok := l.failures[recipient]; ok {
		return "", err
	}

	balance := l.balances[l.agent]
	if balance.LessThan(amount) {
		return "", fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, amount)
	}

	l.balances[l.agent] = balance.Sub(amount)
	l.balances[recipient] = l.balances[recipient].Add(amount)
	l.nonce++

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", l.agent, recipient, amount.String(), l.nonce)))
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// SetBalance overwrites the balance of address
func (l *Simulated) SetBalance(address string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[normalize(address)] = amount
}

// FailTransfersTo makes every transfer to address fail with err
func (l *Simulated) FailTransfersTo(address string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[normalize(address)] = err
}

// ClearFailures removes all injected failures
func (l *Simulated) ClearFailures() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = make(map[string]error)
}

// Agent returns the funded account address
func (l *Simulated) Agent() string {
	return l.agent
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Verify interface compliance at compile time.
var _ domain.Ledger = (*Simulated)(nil)
