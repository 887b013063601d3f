package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceClient defines the interface for wallet balance lookups
type BalanceClient interface {
	// Balances returns the holdings of a wallet
	Balances(ctx context.Context, wallet string) ([]Holding, error)
}

// PriceClient defines the interface for the live price feed
type PriceClient interface {
	// Prices returns the USD price per coin ID
	// Coins missing from the feed are absent from the map
	Prices(ctx context.Context, coinIDs []string) (map[string]decimal.Decimal, error)
}

// PriceCache defines the interface for the last-known-good price store
type PriceCache interface {
	// Get returns the cached USD prices for the requested coin IDs
	// Coins without a cached price are absent from the map
	Get(ctx context.Context, coinIDs []string) (map[string]decimal.Decimal, error)

	// Set stores prices with the given time to live
	Set(ctx context.Context, prices map[string]decimal.Decimal, ttl time.Duration) error
}

// AssetSource supplies the latest asset snapshot of a wallet
type AssetSource interface {
	// Snapshot returns the last known snapshot, or an empty one when nothing is known
	Snapshot(wallet string) AssetSnapshot

	// Track registers a wallet for periodic refresh
	Track(wallet string)
}

// DraftRepository defines the interface for will draft persistence operations
type DraftRepository interface {
	// Save creates or replaces a draft
	Save(ctx context.Context, draft *DraftState) error

	// GetByID retrieves a draft by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*DraftState, error)
}
