package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Hundred is the full percentage of an asset or portfolio
	Hundred = decimal.NewFromInt(100)

	// Epsilon is the tolerance applied to every "at most 100%" check
	Epsilon = decimal.RequireFromString("0.1")
)

// AllocationUnit selects how a per-asset edit is expressed
type AllocationUnit string

const (
	AllocationUnitPercent AllocationUnit = "PERCENT"
	AllocationUnitAmount  AllocationUnit = "AMOUNT" // Native units of the asset
	AllocationUnitUSD     AllocationUnit = "USD"
)

// ParseAllocationUnit maps user input to an AllocationUnit (empty means percent)
func ParseAllocationUnit(s string) (AllocationUnit, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "PERCENT", "PCT", "%":
		return AllocationUnitPercent, nil
	case "AMOUNT", "UNITS":
		return AllocationUnitAmount, nil
	case "USD", "$":
		return AllocationUnitUSD, nil
	default:
		return "", errors.New("allocation unit must be PERCENT, AMOUNT or USD")
	}
}

// AllocationRecord is one beneficiary's claim on one asset.
// Percentage is the only stored quantity; Amount and USDValue are projections of it on the
// current asset snapshot and are recomputed whenever the snapshot changes.
type AllocationRecord struct {
	AssetSymbol   string
	BeneficiaryID string
	Percentage    decimal.Decimal // 0..100
	Amount        decimal.Decimal // Percentage/100 * asset balance
	USDValue      decimal.Decimal // Amount * unit price
}

// Project recomputes the cached Amount and USDValue from the given asset
// A missing asset (ok == false) projects to zero
func (r AllocationRecord) Project(asset Asset, ok bool) AllocationRecord {
	if !ok {
		r.Amount = decimal.Zero
		r.USDValue = decimal.Zero
		return r
	}
	fraction := r.Percentage.Div(Hundred)
	r.Amount = fraction.Mul(asset.Balance)
	// Same quantity as Amount * UnitPriceUSD without dividing by the balance first
	r.USDValue = fraction.Mul(asset.USDValue)
	return r
}

// ClampPercentage limits a percentage to [0, 100]
func ClampPercentage(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(Hundred) {
		return Hundred
	}
	return p
}

// RoundPortfolioPercentage rounds a portfolio-level percentage to one decimal place
func RoundPortfolioPercentage(p decimal.Decimal) decimal.Decimal {
	return p.Round(1)
}

// WithinCap reports whether total <= 100 + Epsilon
func WithinCap(total decimal.Decimal) bool {
	return total.LessThanOrEqual(Hundred.Add(Epsilon))
}

// ParseUserDecimal parses numeric text typed by a user.
// Returns ok == false for empty or non-numeric input; callers ignore such edits.
func ParseUserDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
