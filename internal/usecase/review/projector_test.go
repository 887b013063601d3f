package review

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/allocation"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/portfolio"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixture() ([]domain.Beneficiary, *allocation.Table) {
	beneficiaries := []domain.Beneficiary{
		{ID: "A", DisplayName: "Alice"},
		{ID: "B", DisplayName: "Bob"},
	}
	table := allocation.NewTable(domain.AssetSnapshot{
		Assets: []domain.Asset{
			{Symbol: "ALEO", Balance: d("1000"), USDValue: d("10000")},
			{Symbol: "BTC", Balance: d("1"), USDValue: d("60000")},
			{Symbol: "USDC", Balance: d("500"), USDValue: d("500")},
		},
	})
	return beneficiaries, table
}

func TestProject_TotalsMatchAggregator(t *testing.T) {
	beneficiaries, table := fixture()
	_, err := portfolio.Apply(table, "A", d("40"), portfolio.PolicyReject)
	require.NoError(t, err)
	table.Set("BTC", "B", d("50"))

	summary := Project(beneficiaries, table, []domain.BeneficiaryShare{
		{BeneficiaryID: "A", Allocation: d("50")},
		{BeneficiaryID: "B", Allocation: d("50")},
	})

	assert.Equal(t, 2, summary.BeneficiaryCount)
	assert.Equal(t, 3, summary.AssetsAllocated)
	assert.True(t, d("70500").Equal(summary.PortfolioValue))
	// A: 40% of 70500 = 28200, B: 50% of BTC = 30000
	assert.True(t, d("58200").Equal(summary.TotalUSDAllocated), "got %s", summary.TotalUSDAllocated)

	sum := decimal.Zero
	for _, line := range summary.Beneficiaries {
		assert.True(t, portfolio.TotalValue(table, line.Beneficiary.ID).Equal(line.USDValue))
		assert.True(t, portfolio.PortfolioPercentage(table, line.Beneficiary.ID).Equal(line.PortfolioPercentage))
		sum = sum.Add(line.PortfolioPercentage)
	}
	assert.True(t, sum.Round(8).Equal(summary.TotalAllocatedPercentage.Round(8)))
	assert.Empty(t, summary.Warnings)
}

func TestProject_CountsOnlyNonzeroAllocations(t *testing.T) {
	beneficiaries, table := fixture()
	table.Set("ALEO", "A", d("0"))
	table.Set("BTC", "A", d("10"))

	summary := Project(beneficiaries, table, nil)

	assert.Equal(t, 1, summary.AssetsAllocated)
	require.Len(t, summary.Beneficiaries, 2)
	require.Len(t, summary.Beneficiaries[0].Allocations, 1)
	assert.Equal(t, "BTC", summary.Beneficiaries[0].Allocations[0].AssetSymbol)
	assert.Empty(t, summary.Beneficiaries[1].Allocations)
}

func TestProject_Warnings(t *testing.T) {
	beneficiaries, table := fixture()
	table.Set("BTC", "A", d("60"))
	table.Set("BTC", "B", d("60"))

	summary := Project(beneficiaries, table, []domain.BeneficiaryShare{
		{BeneficiaryID: "A", Allocation: d("100")},
		{BeneficiaryID: "B", Allocation: d("20")},
	})

	require.Len(t, summary.Warnings, 2)
	assert.Contains(t, summary.Warnings[0], "BTC is over-allocated at 120.0%")
	assert.Contains(t, summary.Warnings[1], "120%")

	var btc AssetLine
	for _, line := range summary.Assets {
		if line.Asset.Symbol == "BTC" {
			btc = line
		}
	}
	assert.True(t, btc.OverAllocated)
	assert.Equal(t, 2, btc.BeneficiariesCount)
}

func TestProject_EmptyPortfolio(t *testing.T) {
	beneficiaries := []domain.Beneficiary{{ID: "A", DisplayName: "Alice"}}
	table := allocation.NewTable(domain.AssetSnapshot{Degraded: true})
	table.Set("BTC", "A", d("50"))

	summary := Project(beneficiaries, table, nil)

	assert.True(t, summary.TotalUSDAllocated.IsZero())
	assert.True(t, summary.TotalAllocatedPercentage.IsZero())
	assert.True(t, summary.Degraded)
	assert.Equal(t, 1, summary.AssetsAllocated)
	assert.Contains(t, summary.Warnings, "asset data is unavailable; values are shown as 0")
}
