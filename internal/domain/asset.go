package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Asset represents one fungible crypto holding of the will owner
// USDValue is the market value of the whole Balance at snapshot time
type Asset struct {
	Symbol   string
	CoinID   string          // Price-feed identifier (e.g. "bitcoin"); may be empty
	Balance  decimal.Decimal // Native units held
	USDValue decimal.Decimal // Balance * unit price
}

// UnitPriceUSD returns the price of one native unit
// Returns zero when the balance is zero (the price is undefined)
func (a Asset) UnitPriceUSD() decimal.Decimal {
	if a.Balance.IsZero() {
		return decimal.Zero
	}
	return a.USDValue.Div(a.Balance)
}

// Validate ensures the asset adheres to domain rules
func (a *Asset) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return errors.New("asset symbol cannot be empty")
	}
	if a.Balance.IsNegative() {
		return errors.New("asset balance cannot be negative")
	}
	if a.USDValue.IsNegative() {
		return errors.New("asset USD value cannot be negative")
	}
	return nil
}

// Holding is a raw balance line returned by a wallet balance lookup, before pricing
type Holding struct {
	Symbol  string          `json:"symbol"`
	CoinID  string          `json:"coinId"`
	Balance decimal.Decimal `json:"balance"`
}

// AssetSnapshot is the set of assets known for one wallet at a point in time.
// The zero value is the "no data yet" snapshot: no assets, zero total value.
type AssetSnapshot struct {
	Wallet    string
	Assets    []Asset
	FetchedAt time.Time
	Degraded  bool // True when built from a failed or partial lookup
}

// TotalUSD returns the combined USD value of every asset in the snapshot
func (s AssetSnapshot) TotalUSD() decimal.Decimal {
	total := decimal.Zero
	for _, asset := range s.Assets {
		total = total.Add(asset.USDValue)
	}
	return total
}

// Find returns the asset with the given symbol
func (s AssetSnapshot) Find(symbol string) (Asset, bool) {
	for _, asset := range s.Assets {
		if asset.Symbol == symbol {
			return asset, true
		}
	}
	return Asset{}, false
}

// Symbols returns the asset symbols in snapshot order
func (s AssetSnapshot) Symbols() []string {
	symbols := make([]string, 0, len(s.Assets))
	for _, asset := range s.Assets {
		symbols = append(symbols, asset.Symbol)
	}
	return symbols
}

// IsEmpty reports whether the snapshot carries no assets
func (s AssetSnapshot) IsEmpty() bool {
	return len(s.Assets) == 0
}
