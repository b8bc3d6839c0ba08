package memory

import (
	"context"
	"sync"

	"github.com/sileme/sileme-backend/internal/domain"
)

// HistoryRepository keeps the most recent transfer records in process memory
type HistoryRepository struct {
	mu      sync.RWMutex
	limit   int
	records []domain.TransferRecord // newest first
}

// NewHistoryRepository creates a new HistoryRepository instance.
// A non-positive limit uses domain.HistoryLimit.
func NewHistoryRepository(limit int) *HistoryRepository {
	if limit <= 0 {
		limit = domain.HistoryLimit
	}
	return &HistoryRepository{limit: limit}
}

// Append stores a record, evicting the oldest past the limit
func (r *HistoryRepository) Append(ctx context.Context, record domain.TransferRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append([]domain.TransferRecord{record}, r.records...)
	if len(r.records) > r.limit {
		r.records = r.records[:r.limit]
	}
	return nil
}

// List retrieves the retained records, newest first
func (r *HistoryRepository) List(ctx context.Context) ([]domain.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.TransferRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}
