package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProtocolStatus is the top-level status of the dead man's switch
type ProtocolStatus string

const (
	ProtocolStatusIdle       ProtocolStatus = "IDLE"
	ProtocolStatusOnboarding ProtocolStatus = "ONBOARDING"
	ProtocolStatusMonitoring ProtocolStatus = "MONITORING"
	ProtocolStatusActivated  ProtocolStatus = "ACTIVATED"
	ProtocolStatusExecuted   ProtocolStatus = "EXECUTED"
)

var protocolTransitions = map[ProtocolStatus][]ProtocolStatus{
	ProtocolStatusIdle:       {ProtocolStatusOnboarding},
	ProtocolStatusOnboarding: {ProtocolStatusOnboarding, ProtocolStatusMonitoring},
	ProtocolStatusMonitoring: {ProtocolStatusMonitoring, ProtocolStatusActivated},
	ProtocolStatusActivated:  {ProtocolStatusActivated, ProtocolStatusExecuted, ProtocolStatusMonitoring},
	ProtocolStatusExecuted:   {ProtocolStatusMonitoring}, // only by sealing a new will
}

// CanTransitionTo reports whether the protocol may move to next
func (s ProtocolStatus) CanTransitionTo(next ProtocolStatus) bool {
	for _, allowed := range protocolTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Tripped reports whether proof-of-life can no longer undo the switch
func (s ProtocolStatus) Tripped() bool {
	return s == ProtocolStatusActivated || s == ProtocolStatusExecuted
}

// Identity is the established owner of the switch
type Identity struct {
	Handle        string
	Locale        string
	EstablishedAt time.Time
}

// Wallet is a linked source of funds
type Wallet struct {
	Address  string
	Balance  decimal.Decimal
	LinkedAt time.Time
}

// Funded reports whether the wallet held a positive balance when last read
func (w Wallet) Funded() bool {
	return w.Balance.GreaterThan(decimal.Zero)
}

// SentinelStatus is the verdict of an advisory compromise scan
type SentinelStatus string

const (
	SentinelStatusSecure         SentinelStatus = "SECURE"
	SentinelStatusThreatDetected SentinelStatus = "THREAT_DETECTED"
)

// SentinelReport is advisory only; it never changes the protocol status
type SentinelReport struct {
	Status    SentinelStatus
	Evidence  string
	Timestamp time.Time
}
