package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/sileme/sileme-backend/internal/domain"
)

var bucketHistory = []byte("transfer_history")

// HistoryStore keeps transfer history in an embedded bbolt file.
// Keys are 8-byte big-endian sequence numbers, so cursor order is append order.
type HistoryStore struct {
	db    *bbolt.DB
	limit int
}

// OpenHistoryStore opens or creates the database at dbPath.
// The parent directory is created if it does not exist.
func OpenHistoryStore(dbPath string, limit int) (*HistoryStore, error) {
	if limit <= 0 {
		limit = domain.HistoryLimit
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketHistory)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}

	return &HistoryStore{db: db, limit: limit}, nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error { return s.db.Close() }

// storedRecord is the gob form of a TransferRecord
type storedRecord struct {
	ID              uuid.UUID
	TxHash          string
	From            string
	To              string
	Amount          string
	Timestamp       time.Time
	Status          string
	BeneficiaryName string
	ErrorDetail     string
}

// Append stores the record and evicts the oldest past the limit
func (s *HistoryStore) Append(ctx context.Context, record domain.TransferRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := encodeGob(storedRecord{
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
		return fmt.Errorf("bolt: encode record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("bolt: next sequence: %w", err)
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("bolt: put record: %w", err)
		}

		c := b.Cursor()
		excess := -s.limit
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			excess++
		}
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return fmt.Errorf("bolt: evict record: %w", err)
			}
			excess--
		}
		return nil
	})
}

// List retrieves the most recent records, newest first
func (s *HistoryStore) List(ctx context.Context) ([]domain.TransferRecord, error) {
	records := make([]domain.TransferRecord, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketHistory).Cursor()
		for k, v := c.Last(); k != nil && len(records) < s.limit; k, v = c.Prev() {
			var stored storedRecord
			if err := decodeGob(v, &stored); err != nil {
				return fmt.Errorf("bolt: decode record: %w", err)
			}
			amount, err := decimal.NewFromString(stored.Amount)
			if err != nil {
				return fmt.Errorf("bolt: parse amount %q: %w", stored.Amount, err)
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
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Compile-time interface check.
var _ domain.HistoryRepository = (*HistoryStore)(nil)
