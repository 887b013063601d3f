package portfolio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/allocation"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/validation"
)

// WritePolicy decides what happens to a write that would over-allocate
type WritePolicy string

const (
	// PolicyReject refuses the write and leaves the table untouched
	PolicyReject WritePolicy = "reject"
	// PolicyClamp lowers the write to the remaining headroom
	PolicyClamp WritePolicy = "clamp"
)

// ParseWritePolicy maps a configuration value to a WritePolicy (empty means reject)
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch WritePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyClamp:
		return PolicyClamp, nil
	default:
		return "", fmt.Errorf("unknown over-allocation policy %q: %w", s, domain.ErrInvalidInput)
	}
}

// WriteResult describes what a portfolio-level write actually stored
type WriteResult struct {
	BeneficiaryID string
	Requested     decimal.Decimal // After clamping to [0,100] and rounding
	Applied       decimal.Decimal // Percentage written to every asset
	Clamped       bool            // True when PolicyClamp lowered the value
	AssetsWritten int
}

// TotalValue returns the USD value of everything allocated to the beneficiary,
// projected on the table's current snapshot
func TotalValue(table *allocation.Table, beneficiaryID string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range table.RecordsFor(beneficiaryID) {
		total = total.Add(r.USDValue)
	}
	return total
}

// PortfolioPercentage returns the beneficiary's share of the whole portfolio value.
// Returns 0 when the portfolio has no value.
func PortfolioPercentage(table *allocation.Table, beneficiaryID string) decimal.Decimal {
	portfolioValue := table.Snapshot().TotalUSD()
	if !portfolioValue.IsPositive() {
		return decimal.Zero
	}
	return TotalValue(table, beneficiaryID).Mul(domain.Hundred).Div(portfolioValue)
}

// Apply sets the beneficiary's portfolio-level percentage.
// Logic:
//  1. Clamp p to [0, 100] and round it to one decimal place
//  2. Validate against the other beneficiaries' portfolio percentages
//  3. Validate every asset: p plus the others' claims on that asset must stay within the cap
//  4. On over-allocation either reject (nothing written) or lower p to the tightest headroom
//  5. Write the same percentage to every asset of the snapshot
//
// Steps 2 and 3 only flag a write that raises the beneficiary's current claim, so lowering
// a claim is always accepted even while other beneficiaries over-allocate.
// Step 5 overwrites any asset-specific percentage previously set for the beneficiary.
func Apply(table *allocation.Table, beneficiaryID string, p decimal.Decimal, policy WritePolicy) (WriteResult, error) {
	requested := domain.RoundPortfolioPercentage(domain.ClampPercentage(p))
	result := WriteResult{
		BeneficiaryID: beneficiaryID,
		Requested:     requested,
		Applied:       requested,
	}

	snapshot := table.Snapshot()
	current := PortfolioPercentage(table, beneficiaryID)
	check := validation.ValidatePortfolio(table, snapshot, beneficiaryID, requested)
	var overErr *domain.OverAllocationError
	if check.Exceeded && requested.GreaterThan(current) {
		overErr = &domain.OverAllocationError{
			Scope:         domain.ScopePortfolio,
			BeneficiaryID: beneficiaryID,
			Requested:     requested,
			Total:         requested.Add(check.OthersTotal),
		}
	}

	headroom := decimal.Min(requested, decimal.Max(check.Available, current))
	for _, asset := range snapshot.Assets {
		claim := table.Get(asset.Symbol, beneficiaryID)
		others := validation.Validate(table, asset.Symbol).TotalPercentage.Sub(claim)
		available := decimal.Max(domain.ClampPercentage(domain.Hundred.Sub(others)), claim)
		headroom = decimal.Min(headroom, available)
		if overErr == nil && requested.GreaterThan(claim) && !domain.WithinCap(requested.Add(others)) {
			overErr = &domain.OverAllocationError{
				Scope:         domain.ScopeAsset,
				AssetSymbol:   asset.Symbol,
				BeneficiaryID: beneficiaryID,
				Requested:     requested,
				Total:         requested.Add(others),
			}
		}
	}

	if overErr != nil {
		if policy != PolicyClamp {
			return result, overErr
		}
		result.Applied = headroom.RoundFloor(1)
		result.Clamped = true
	}

	for _, asset := range snapshot.Assets {
		table.Set(asset.Symbol, beneficiaryID, result.Applied)
		result.AssetsWritten++
	}

	return result, nil
}

// PercentageFromAmount converts a native-unit amount of the asset to a percentage of its balance.
// Returns 0 when the balance is zero.
func PercentageFromAmount(asset domain.Asset, amount decimal.Decimal) decimal.Decimal {
	if !asset.Balance.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(domain.Hundred).Div(asset.Balance)
}

// PercentageFromUSD converts a USD value to a percentage of the asset's value.
// Returns 0 when the asset has no value.
func PercentageFromUSD(asset domain.Asset, usd decimal.Decimal) decimal.Decimal {
	if !asset.USDValue.IsPositive() {
		return decimal.Zero
	}
	return usd.Mul(domain.Hundred).Div(asset.USDValue)
}
