package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// schema creates the tables owned by this adapter
const schema = `
	CREATE TABLE IF NOT EXISTS transfer_history (
		seq              BIGSERIAL PRIMARY KEY,
		id               UUID NOT NULL UNIQUE,
		tx_hash          TEXT,
		from_address     TEXT NOT NULL,
		to_address       TEXT NOT NULL,
		amount           NUMERIC(78, 0) NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		status           TEXT NOT NULL,
		beneficiary_name TEXT NOT NULL,
		error_detail     TEXT
	)
`

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=sileme sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates missing tables
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
