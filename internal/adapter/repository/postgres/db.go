package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// schema holds the will draft tables. Only percentages are stored; amounts and USD values
// are projections of the live asset snapshot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS will_drafts (
		id UUID PRIMARY KEY,
		owner_wallet TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS will_beneficiaries (
		draft_id UUID NOT NULL REFERENCES will_drafts(id) ON DELETE CASCADE,
		position INT NOT NULL,
		id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		relation TEXT NOT NULL DEFAULT '',
		wallet_address TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (draft_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS will_shares (
		draft_id UUID NOT NULL REFERENCES will_drafts(id) ON DELETE CASCADE,
		position INT NOT NULL,
		beneficiary_id TEXT NOT NULL,
		allocation NUMERIC(7, 4) NOT NULL,
		PRIMARY KEY (draft_id, beneficiary_id)
	)`,
	`CREATE TABLE IF NOT EXISTS will_allocations (
		draft_id UUID NOT NULL REFERENCES will_drafts(id) ON DELETE CASCADE,
		asset_symbol TEXT NOT NULL,
		beneficiary_id TEXT NOT NULL,
		percentage NUMERIC(30, 18) NOT NULL,
		PRIMARY KEY (draft_id, asset_symbol, beneficiary_id)
	)`,
}

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=zlegacy sslmode=disable"
func NewDB(ctx context.Context, connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// EnsureSchema creates the draft tables when they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
