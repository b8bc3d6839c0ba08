package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sileme/sileme-backend/internal/domain"
)

// historyRepository implements domain.HistoryRepository
type historyRepository struct {
	db    *DB
	limit int
}

// NewHistoryRepository creates a new history repository keeping the most recent limit records
func NewHistoryRepository(db *DB, limit int) domain.HistoryRepository {
	if limit <= 0 {
		limit = domain.HistoryLimit
	}
	return &historyRepository{db: db, limit: limit}
}

// Append inserts the record and trims the table to the most recent records
func (r *historyRepository) Append(ctx context.Context, record domain.TransferRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	insertQuery := `
		INSERT INTO transfer_history (id, tx_hash, from_address, to_address, amount, created_at, status, beneficiary_name, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = dbTx.ExecContext(ctx, insertQuery,
		record.ID,
		nullable(record.TxHash),
		record.From,
		record.To,
		record.Amount.String(),
		record.Timestamp,
		string(record.Status),
		record.BeneficiaryName,
		nullable(record.ErrorDetail),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer record: %w", err)
	}

	// Evict the oldest records past the limit
	trimQuery := `
		DELETE FROM transfer_history
		WHERE seq NOT IN (SELECT seq FROM transfer_history ORDER BY seq DESC LIMIT $1)
	`

	if _, err = dbTx.ExecContext(ctx, trimQuery, r.limit); err != nil {
		return fmt.Errorf("failed to trim transfer history: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List retrieves the most recent records, newest first
func (r *historyRepository) List(ctx context.Context) ([]domain.TransferRecord, error) {
	query := `
		SELECT id, tx_hash, from_address, to_address, amount, created_at, status, beneficiary_name, error_detail
		FROM transfer_history
		ORDER BY seq DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, r.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.TransferRecord, 0)
	for rows.Next() {
		var (
			record      domain.TransferRecord
			txHash      sql.NullString
			amount      string
			status      string
			errorDetail sql.NullString
		)

		err := rows.Scan(
			&record.ID,
			&txHash,
			&record.From,
			&record.To,
			&amount,
			&record.Timestamp,
			&status,
			&record.BeneficiaryName,
			&errorDetail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer record: %w", err)
		}

		record.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
		}
		record.TxHash = txHash.String
		record.Status = domain.TransferStatus(status)
		record.ErrorDetail = errorDetail.String

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfer history: %w", err)
	}

	return records, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
