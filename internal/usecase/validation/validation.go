package validation

import (
	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/allocation"
)

// Result is the outcome of checking one asset's allocations
type Result struct {
	AssetSymbol     string
	OK              bool
	TotalPercentage decimal.Decimal
}

// PortfolioResult is the outcome of checking a proposed portfolio-level percentage
type PortfolioResult struct {
	Exceeded    bool
	Proposed    decimal.Decimal
	OthersTotal decimal.Decimal // Sum of the other beneficiaries' portfolio percentages
	Available   decimal.Decimal // Headroom left for the beneficiary, never negative
}

// Validate sums every beneficiary's percentage on the asset and checks it against 100 + Epsilon
func Validate(table *allocation.Table, assetSymbol string) Result {
	total := decimal.Zero
	for _, r := range table.RecordsForAsset(assetSymbol) {
		total = total.Add(r.Percentage)
	}
	return Result{
		AssetSymbol:     assetSymbol,
		OK:              domain.WithinCap(total),
		TotalPercentage: total,
	}
}

// ValidateAll validates every asset of the snapshot, then any asset that only exists in the table.
// Results follow snapshot order; table-only assets come last in symbol order.
func ValidateAll(table *allocation.Table, snapshot domain.AssetSnapshot) []Result {
	results := make([]Result, 0, len(snapshot.Assets))
	seen := make(map[string]bool, len(snapshot.Assets))
	for _, asset := range snapshot.Assets {
		if seen[asset.Symbol] {
			continue
		}
		seen[asset.Symbol] = true
		results = append(results, Validate(table, asset.Symbol))
	}
	for _, symbol := range table.AssetSymbols() {
		if !seen[symbol] {
			results = append(results, Validate(table, symbol))
		}
	}
	return results
}

// Invalid filters results down to the over-allocated assets
func Invalid(results []Result) []Result {
	invalid := make([]Result, 0)
	for _, r := range results {
		if !r.OK {
			invalid = append(invalid, r)
		}
	}
	return invalid
}

// ValidatePortfolio checks whether giving beneficiaryID the proposed portfolio percentage
// would push the sum of all portfolio percentages past 100 + Epsilon.
// Logic:
//  1. Sum the portfolio percentage of every other beneficiary with allocations
//  2. Exceeded when proposed + others > 100 + Epsilon
//  3. Available = max(0, 100 - others)
//
// An empty portfolio (total value 0) gives every beneficiary 0%, so nothing is counted.
func ValidatePortfolio(table *allocation.Table, snapshot domain.AssetSnapshot, beneficiaryID string, proposed decimal.Decimal) PortfolioResult {
	portfolioValue := snapshot.TotalUSD()

	others := decimal.Zero
	if portfolioValue.IsPositive() {
		valueByBeneficiary := make(map[string]decimal.Decimal)
		for _, r := range table.Records() {
			if r.BeneficiaryID == beneficiaryID {
				continue
			}
			valueByBeneficiary[r.BeneficiaryID] = valueByBeneficiary[r.BeneficiaryID].Add(r.USDValue)
		}
		for _, value := range valueByBeneficiary {
			others = others.Add(value.Mul(domain.Hundred).Div(portfolioValue))
		}
	}

	available := domain.Hundred.Sub(others)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return PortfolioResult{
		Exceeded:    !domain.WithinCap(proposed.Add(others)),
		Proposed:    proposed,
		OthersTotal: others,
		Available:   available,
	}
}
