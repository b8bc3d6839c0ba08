package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sileme/sileme-backend/internal/domain"
)

// DefaultJournalLimit is the number of protocol events retained
const DefaultJournalLimit = 200

// EventJournal is a bounded in-memory protocol log
type EventJournal struct {
	mu     sync.RWMutex
	limit  int
	events []domain.Event // newest first
}

// NewEventJournal creates a new EventJournal instance.
// A non-positive limit uses DefaultJournalLimit.
func NewEventJournal(limit int) *EventJournal {
	if limit <= 0 {
		limit = DefaultJournalLimit
	}
	return &EventJournal{limit: limit}
}

// Append stores an event, evicting the oldest past the limit
func (j *EventJournal) Append(ctx context.Context, event domain.Event) error {
	if !event.Kind.Valid() {
		return fmt.Errorf("journal: %s is not a protocol event kind", event.Kind)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.events = append([]domain.Event{event}, j.events...)
	if len(j.events) > j.limit {
		j.events = j.events[:j.limit]
	}
	return nil
}

// List retrieves the retained events, newest first
func (j *EventJournal) List(ctx context.Context) ([]domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]domain.Event, len(j.events))
	copy(out, j.events)
	return out, nil
}

// CountByKind tallies retained events per kind
func (j *EventJournal) CountByKind() map[domain.EventKind]int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	counts := make(map[domain.EventKind]int, len(domain.AllEventKinds))
	for _, e := range j.events {
		counts[e.Kind]++
	}
	return counts
}
