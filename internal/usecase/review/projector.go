package review

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/allocation"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/portfolio"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/validation"
)

// BeneficiaryLine is one beneficiary's row in the summary
type BeneficiaryLine struct {
	Beneficiary         domain.Beneficiary
	PortfolioPercentage decimal.Decimal
	USDValue            decimal.Decimal
	Share               decimal.Decimal
	Allocations         []domain.AllocationRecord // Nonzero records only
}

// AssetLine is one asset's row in the summary
type AssetLine struct {
	Asset              domain.Asset
	AllocatedPercent   decimal.Decimal
	AllocatedUSD       decimal.Decimal
	OverAllocated      bool
	BeneficiariesCount int
}

// Summary is the read-only projection shown before a will is submitted
type Summary struct {
	AssetsAllocated          int
	BeneficiaryCount         int
	PortfolioValue           decimal.Decimal
	TotalUSDAllocated        decimal.Decimal
	TotalAllocatedPercentage decimal.Decimal
	ShareTotal               decimal.Decimal
	Beneficiaries            []BeneficiaryLine
	Assets                   []AssetLine
	Degraded                 bool
	Warnings                 []string
}

// Project computes the review summary
// Logic:
//  1. Per beneficiary: portfolio percentage and USD value via the aggregator read path
//  2. Total USD allocated = sum of every beneficiary's value
//  3. Total allocated percentage = 100 * total / portfolio value (0 for an empty portfolio)
//  4. Per asset: validation result and allocated value
//  5. Warnings for over-allocated assets and share totals other than 100; they never block
func Project(beneficiaries []domain.Beneficiary, table *allocation.Table, shares []domain.BeneficiaryShare) Summary {
	snapshot := table.Snapshot()
	summary := Summary{
		BeneficiaryCount:  len(beneficiaries),
		PortfolioValue:    snapshot.TotalUSD(),
		TotalUSDAllocated: decimal.Zero,
		ShareTotal:        decimal.Zero,
		Degraded:          snapshot.Degraded,
	}

	shareByID := make(map[string]decimal.Decimal, len(shares))
	for _, s := range shares {
		shareByID[s.BeneficiaryID] = s.Allocation
		summary.ShareTotal = summary.ShareTotal.Add(s.Allocation)
	}

	for _, b := range beneficiaries {
		value := portfolio.TotalValue(table, b.ID)
		line := BeneficiaryLine{
			Beneficiary:         b,
			PortfolioPercentage: portfolio.PortfolioPercentage(table, b.ID),
			USDValue:            value,
			Share:               shareByID[b.ID],
		}
		for _, r := range table.RecordsFor(b.ID) {
			if r.Percentage.IsPositive() {
				line.Allocations = append(line.Allocations, r)
			}
		}
		summary.TotalUSDAllocated = summary.TotalUSDAllocated.Add(value)
		summary.Beneficiaries = append(summary.Beneficiaries, line)
	}

	if summary.PortfolioValue.IsPositive() {
		summary.TotalAllocatedPercentage = summary.TotalUSDAllocated.Mul(domain.Hundred).Div(summary.PortfolioValue)
	}

	for _, result := range validation.ValidateAll(table, snapshot) {
		asset, ok := snapshot.Find(result.AssetSymbol)
		if !ok {
			asset = domain.Asset{Symbol: result.AssetSymbol}
		}
		line := AssetLine{
			Asset:            asset,
			AllocatedPercent: result.TotalPercentage,
			AllocatedUSD:     decimal.Zero,
			OverAllocated:    !result.OK,
		}
		for _, r := range table.RecordsForAsset(result.AssetSymbol) {
			if r.Percentage.IsPositive() {
				line.BeneficiariesCount++
				line.AllocatedUSD = line.AllocatedUSD.Add(r.USDValue)
			}
		}
		if line.BeneficiariesCount > 0 {
			summary.AssetsAllocated++
		}
		if line.OverAllocated {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("%s is over-allocated at %s%%", result.AssetSymbol, result.TotalPercentage.StringFixed(1)))
		}
		summary.Assets = append(summary.Assets, line)
	}

	if len(shares) > 0 && !summary.ShareTotal.Equal(domain.Hundred) {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("beneficiary shares add up to %s%% instead of 100%%", summary.ShareTotal.String()))
	}
	if snapshot.Degraded {
		summary.Warnings = append(summary.Warnings, "asset data is unavailable; values are shown as 0")
	}

	return summary
}
