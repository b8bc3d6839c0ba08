package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sileme/sileme-backend/internal/domain"
)

// DefaultHistoryKey is the list holding serialized transfer records
const DefaultHistoryKey = "sileme:transfer_history"

// historyRepository implements domain.HistoryRepository as a capped list:
// LPUSH puts the newest record at the head and LTRIM evicts the oldest.
type historyRepository struct {
	client redis.Cmdable
	key    string
	limit  int
}

// NewHistoryRepository creates a new redis-backed history repository
func NewHistoryRepository(client redis.Cmdable, key string, limit int) domain.HistoryRepository {
	if key == "" {
		key = DefaultHistoryKey
	}
	if limit <= 0 {
		limit = domain.HistoryLimit
	}
	return &historyRepository{client: client, key: key, limit: limit}
}

// transferRecordJSON is the stored form of a TransferRecord
type transferRecordJSON struct {
	ID              uuid.UUID `json:"id"`
	TxHash          string    `json:"txHash,omitempty"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Amount          string    `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
	Status          string    `json:"status"`
	BeneficiaryName string    `json:"beneficiaryName"`
	ErrorDetail     string    `json:"error,omitempty"`
}

// Append pushes the record and trims the list in one transaction
func (r *historyRepository) Append(ctx context.Context, record domain.TransferRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(transferRecordJSON{
		ID:              record.ID,
		TxHash:          record.TxHash,
		From:            record.From,
		To:              record.To,
		Amount:          record.Amount.String(),
		Timestamp:       record.Timestamp,
		Status:          string(record.Status),
		BeneficiaryName: record.BeneficiaryName,
		ErrorDetail:     record.ErrorDetail,
	})
	if err != nil {
		return fmt.Errorf("failed to encode transfer record: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, payload)
		pipe.LTrim(ctx, r.key, 0, int64(r.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append transfer record: %w", err)
	}
	return nil
}

// List retrieves the most recent records, newest first
func (r *historyRepository) List(ctx context.Context) ([]domain.TransferRecord, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, int64(r.limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer history: %w", err)
	}

	records := make([]domain.TransferRecord, 0, len(raw))
	for _, item := range raw {
		var stored transferRecordJSON
		if err := json.Unmarshal([]byte(item), &stored); err != nil {
			return nil, fmt.Errorf("failed to decode transfer record: %w", err)
		}

		amount, err := decimal.NewFromString(stored.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", stored.Amount, err)
		}

		records = append(records, domain.TransferRecord{
			ID:              stored.ID,
			TxHash:          stored.TxHash,
			From:            stored.From,
			To:              stored.To,
			Amount:          amount,
			Timestamp:       stored.Timestamp,
			Status:          domain.TransferStatus(stored.Status),
			BeneficiaryName: stored.BeneficiaryName,
			ErrorDetail:     stored.ErrorDetail,
		})
	}
	return records, nil
}
