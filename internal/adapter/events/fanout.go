package events

import (
	"context"
	"errors"

	"github.com/sileme/sileme-backend/internal/domain"
)

// Fanout delivers every event to all publishers, even when some fail
type Fanout []domain.EventPublisher

// Publish returns the joined errors of the publishers that failed
func (f Fanout) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ domain.EventPublisher = Fanout(nil)
