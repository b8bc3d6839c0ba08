package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind is the closed set of protocol journal entries
type EventKind int

const (
	EventHeartbeat EventKind = iota + 1
	EventAlert
	EventDistribution
	EventSentinel
	EventChainTx
	EventAIThinking
)

// AllEventKinds lists every kind in declaration order
var AllEventKinds = []EventKind{
	EventHeartbeat,
	EventAlert,
	EventDistribution,
	EventSentinel,
	EventChainTx,
	EventAIThinking,
}

func (k EventKind) String() string {
	switch k {
	case EventHeartbeat:
		return "HEARTBEAT"
	case EventAlert:
		return "ALERT"
	case EventDistribution:
		return "DISTRIBUTION"
	case EventSentinel:
		return "SENTINEL"
	case EventChainTx:
		return "CHAIN_TX"
	case EventAIThinking:
		return "AI_THINKING"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds
func (k EventKind) Valid() bool {
	return k >= EventHeartbeat && k <= EventAIThinking
}

// ParseEventKind is the inverse of String
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range AllEventKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is one journal entry of the protocol
type Event struct {
	ID        uuid.UUID
	Kind      EventKind
	Timestamp time.Time
	Details   string
}

// NewEvent stamps a new event
func NewEvent(kind EventKind, at time.Time, details string) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		Timestamp: at,
		Details:   details,
	}
}
