package will

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/portfolio"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/validation"
)

const wallet = "aleo1owner"

// MockAssetSource is a mock implementation of AssetSource for testing
type MockAssetSource struct {
	mock.Mock
}

func (m *MockAssetSource) Snapshot(wallet string) domain.AssetSnapshot {
	args := m.Called(wallet)
	return args.Get(0).(domain.AssetSnapshot)
}

func (m *MockAssetSource) Track(wallet string) {
	m.Called(wallet)
}

// MockDraftRepository is a mock implementation of DraftRepository for testing
type MockDraftRepository struct {
	mock.Mock
}

func (m *MockDraftRepository) Save(ctx context.Context, draft *domain.DraftState) error {
	args := m.Called(ctx, draft)
	return args.Error(0)
}

func (m *MockDraftRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DraftState, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DraftState), args.Error(1)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func aleoBTC() domain.AssetSnapshot {
	return domain.AssetSnapshot{
		Wallet: wallet,
		Assets: []domain.Asset{
			{Symbol: "ALEO", CoinID: "aleo", Balance: d("1000"), USDValue: d("10000")},
			{Symbol: "BTC", CoinID: "bitcoin", Balance: d("1"), USDValue: d("60000")},
		},
	}
}

func newAssets(snapshot domain.AssetSnapshot) *MockAssetSource {
	assets := new(MockAssetSource)
	assets.On("Snapshot", wallet).Return(snapshot)
	assets.On("Track", wallet).Return()
	return assets
}

// setupDraft creates a draft with the given beneficiaries added in order
func setupDraft(t *testing.T, policy portfolio.WritePolicy, ids ...string) (*WillService, uuid.UUID) {
	t.Helper()
	service := NewWillService(newAssets(aleoBTC()), nil, policy, nil, nil)
	state, err := service.CreateDraft(context.Background(), wallet)
	require.NoError(t, err)
	for _, id := range ids {
		_, err := service.AddBeneficiary(context.Background(), state.ID, domain.Beneficiary{ID: id, DisplayName: "Name " + id})
		require.NoError(t, err)
	}
	return service, state.ID
}

func percentOf(t *testing.T, service *WillService, draftID uuid.UUID, asset, beneficiary string) decimal.Decimal {
	t.Helper()
	state, err := service.ExportDraft(context.Background(), draftID)
	require.NoError(t, err)
	for _, r := range state.Allocations {
		if r.AssetSymbol == asset && r.BeneficiaryID == beneficiary {
			return r.Percentage
		}
	}
	return decimal.Zero
}

func TestCreateDraft(t *testing.T) {
	assets := newAssets(aleoBTC())
	service := NewWillService(assets, nil, "", nil, nil)

	state, err := service.CreateDraft(context.Background(), " "+wallet+" ")

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, state.ID)
	assert.Equal(t, wallet, state.OwnerWallet)
	assert.Empty(t, state.Beneficiaries)
	assert.Equal(t, portfolio.PolicyReject, service.Policy)
	assets.AssertCalled(t, "Track", wallet)

	_, err = service.CreateDraft(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUnknownDraftAndBeneficiary(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A")
	ctx := context.Background()

	_, err := service.ExportDraft(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "Z", Value: "10"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.SetPortfolioPercentage(ctx, draftID, "Z", "10")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, service.RemoveBeneficiary(ctx, draftID, "Z"), domain.ErrNotFound)
}

func TestAddBeneficiary(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()

	generated, err := service.AddBeneficiary(ctx, draftID, domain.Beneficiary{DisplayName: "Carol"})
	require.NoError(t, err)
	_, err = uuid.Parse(generated.ID)
	assert.NoError(t, err, "missing IDs are generated")

	_, err = service.AddBeneficiary(ctx, draftID, domain.Beneficiary{ID: "A", DisplayName: "Again"})
	assert.ErrorIs(t, err, domain.ErrDuplicateBeneficiary)

	_, err = service.AddBeneficiary(ctx, draftID, domain.Beneficiary{ID: "D"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	state, err := service.ExportDraft(ctx, draftID)
	require.NoError(t, err)
	require.Len(t, state.Shares, 3)
	assert.True(t, d("100").Equal(state.Shares[0].Allocation))
	assert.True(t, state.Shares[1].Allocation.IsZero())
	assert.True(t, state.Shares[2].Allocation.IsZero())
}

func TestSetPortfolioPercentage_UniformAcrossAssets(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")

	result, err := service.SetPortfolioPercentage(context.Background(), draftID, "A", "40")

	require.NoError(t, err)
	assert.False(t, result.Ignored)
	assert.True(t, d("40").Equal(result.Applied))
	assert.True(t, d("40").Equal(result.PortfolioPercentage))
	assert.True(t, d("40").Equal(percentOf(t, service, draftID, "ALEO", "A")))
	assert.True(t, d("40").Equal(percentOf(t, service, draftID, "BTC", "A")))

	summary, err := service.Review(context.Background(), draftID)
	require.NoError(t, err)
	assert.True(t, d("28000").Equal(summary.Beneficiaries[0].USDValue))
	assert.True(t, d("40").Equal(summary.TotalAllocatedPercentage))
}

func TestSetPortfolioPercentage_OverwritesAssetCustomisation(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A")
	ctx := context.Background()
	_, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "75"})
	require.NoError(t, err)

	_, err = service.SetPortfolioPercentage(ctx, draftID, "A", "10")
	require.NoError(t, err)

	assert.True(t, d("10").Equal(percentOf(t, service, draftID, "BTC", "A")), "per-asset value is replaced by the uniform one")
}

func TestSetPortfolioPercentage_Rejected(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()
	_, err := service.SetPortfolioPercentage(ctx, draftID, "B", "80")
	require.NoError(t, err)

	_, err = service.SetPortfolioPercentage(ctx, draftID, "A", "30")

	var overErr *domain.OverAllocationError
	require.True(t, errors.As(err, &overErr))
	assert.Equal(t, domain.ScopePortfolio, overErr.Scope)
	assert.True(t, percentOf(t, service, draftID, "BTC", "A").IsZero())
}

func TestSetPortfolioPercentage_IgnoresNonNumeric(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A")

	result, err := service.SetPortfolioPercentage(context.Background(), draftID, "A", "abc")

	require.NoError(t, err)
	assert.True(t, result.Ignored)
	state, _ := service.ExportDraft(context.Background(), draftID)
	assert.Empty(t, state.Allocations)
}

func TestSetAssetAllocation_SequentialOverAllocation(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()

	first, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "60"})
	require.NoError(t, err)
	assert.True(t, first.Validation.OK)

	_, err = service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "B", Value: "60"})

	require.Error(t, err)
	var overErr *domain.OverAllocationError
	require.True(t, errors.As(err, &overErr))
	assert.Equal(t, domain.ScopeAsset, overErr.Scope)
	assert.Equal(t, "BTC", overErr.AssetSymbol)
	assert.Equal(t, "B", overErr.BeneficiaryID)
	assert.True(t, d("120").Equal(overErr.Total))

	state, err := service.ExportDraft(ctx, draftID)
	require.NoError(t, err)
	require.Len(t, state.Allocations, 1, "rejected write is rolled back")
	assert.Equal(t, "A", state.Allocations[0].BeneficiaryID)
}

func TestSetAssetAllocation_RollbackRestoresPreviousValue(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()
	_, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "60"})
	require.NoError(t, err)
	_, err = service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "B", Value: "30"})
	require.NoError(t, err)

	_, err = service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "B", Value: "50"})

	assert.ErrorIs(t, err, domain.ErrOverAllocation)
	assert.True(t, d("30").Equal(percentOf(t, service, draftID, "BTC", "B")))
}

func TestSetAssetAllocation_ClampPolicy(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyClamp, "A", "B")
	ctx := context.Background()
	_, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "60"})
	require.NoError(t, err)

	result, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "B", Value: "60"})

	require.NoError(t, err)
	assert.True(t, result.Clamped)
	assert.True(t, d("40").Equal(result.Record.Percentage))
	assert.True(t, result.Validation.OK)
	assert.True(t, d("100").Equal(result.Validation.TotalPercentage))
}

func TestSetAssetAllocation_Units(t *testing.T) {
	tests := []struct {
		name    string
		asset   string
		value   string
		unit    domain.AllocationUnit
		wantPct string
		wantErr error
	}{
		{name: "Percent", asset: "BTC", value: "12.5%", unit: domain.AllocationUnitPercent, wantPct: "12.5"},
		{name: "Amount", asset: "BTC", value: "0.25", unit: domain.AllocationUnitAmount, wantPct: "25"},
		{name: "USD", asset: "ALEO", value: "2,500", unit: domain.AllocationUnitUSD, wantPct: "25"},
		{name: "Above balance clamps", asset: "ALEO", value: "5000", unit: domain.AllocationUnitAmount, wantPct: "100"},
		{name: "Amount on unknown asset", asset: "ETH", value: "1", unit: domain.AllocationUnitAmount, wantErr: domain.ErrInvalidInput},
		{name: "Unknown unit", asset: "BTC", value: "1", unit: "GRAMS", wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, draftID := setupDraft(t, portfolio.PolicyReject, "A")

			result, err := service.SetAssetAllocation(context.Background(), SetAssetAllocationInput{
				DraftID: draftID, AssetSymbol: tt.asset, BeneficiaryID: "A", Value: tt.value, Unit: tt.unit,
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, d(tt.wantPct).Equal(result.Record.Percentage), "got %s", result.Record.Percentage)
		})
	}
}

func TestSetAssetAllocation_IgnoresNonNumeric(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A")
	ctx := context.Background()
	_, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "20"})
	require.NoError(t, err)

	result, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "twenty"})

	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.True(t, d("20").Equal(result.Record.Percentage))
}

func TestSetAssetAllocation_LoweringOverAllocatedAssetIsAccepted(t *testing.T) {
	service := NewWillService(newAssets(aleoBTC()), nil, portfolio.PolicyReject, nil, nil)
	ctx := context.Background()
	state, err := service.ImportDraft(ctx, domain.DraftState{
		OwnerWallet: wallet,
		Beneficiaries: []domain.Beneficiary{
			{ID: "A", DisplayName: "Alice"},
			{ID: "B", DisplayName: "Bob"},
		},
		Allocations: []domain.AllocationRecord{
			{AssetSymbol: "BTC", BeneficiaryID: "A", Percentage: d("70")},
			{AssetSymbol: "BTC", BeneficiaryID: "B", Percentage: d("70")},
		},
		Shares: []domain.BeneficiaryShare{
			{BeneficiaryID: "A", Allocation: d("50")},
			{BeneficiaryID: "B", Allocation: d("50")},
		},
	})
	require.NoError(t, err)

	result, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: state.ID, AssetSymbol: "BTC", BeneficiaryID: "B", Value: "50"})

	require.NoError(t, err)
	assert.False(t, result.Validation.OK, "still over-allocated, but closer to valid")
	assert.True(t, d("50").Equal(percentOf(t, service, state.ID, "BTC", "B")))
}

// importOverAllocatedBTC loads a draft whose BTC claims add up past 100%
func importOverAllocatedBTC(t *testing.T, policy portfolio.WritePolicy, claims map[string]string) (*WillService, uuid.UUID) {
	t.Helper()
	service := NewWillService(newAssets(aleoBTC()), nil, policy, nil, nil)
	state := domain.DraftState{OwnerWallet: wallet}
	for _, id := range []string{"A", "B", "C"} {
		claim, ok := claims[id]
		if !ok {
			continue
		}
		state.Beneficiaries = append(state.Beneficiaries, domain.Beneficiary{ID: id, DisplayName: "Name " + id})
		state.Allocations = append(state.Allocations, domain.AllocationRecord{AssetSymbol: "BTC", BeneficiaryID: id, Percentage: d(claim)})
		state.Shares = append(state.Shares, domain.BeneficiaryShare{BeneficiaryID: id})
	}
	state.Shares[0].Allocation = d("100")
	imported, err := service.ImportDraft(context.Background(), state)
	require.NoError(t, err)
	return service, imported.ID
}

func TestSetAssetAllocation_ClampKeepsPreviousClaimOnOverAllocatedAsset(t *testing.T) {
	service, draftID := importOverAllocatedBTC(t, portfolio.PolicyClamp, map[string]string{"A": "30", "B": "100"})

	result, err := service.SetAssetAllocation(context.Background(), SetAssetAllocationInput{
		DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "40",
	})

	require.NoError(t, err)
	assert.True(t, result.Clamped)
	assert.True(t, d("30").Equal(result.Record.Percentage), "got %s", result.Record.Percentage)
	assert.True(t, d("30").Equal(percentOf(t, service, draftID, "BTC", "A")))
}

func TestSetPortfolioPercentage_LoweringOverAllocatedAssetIsAccepted(t *testing.T) {
	service, draftID := importOverAllocatedBTC(t, portfolio.PolicyReject, map[string]string{"A": "30", "B": "60", "C": "50"})
	ctx := context.Background()

	_, err := service.SetPortfolioPercentage(ctx, draftID, "A", "0")

	require.NoError(t, err)
	assert.True(t, percentOf(t, service, draftID, "BTC", "A").IsZero())

	_, err = service.SetPortfolioPercentage(ctx, draftID, "B", "70")
	assert.ErrorIs(t, err, domain.ErrOverAllocation)
	assert.True(t, d("60").Equal(percentOf(t, service, draftID, "BTC", "B")))
}

func TestRemoveBeneficiary_FailureLeavesDraftUntouched(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()
	_, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "B", Value: "30"})
	require.NoError(t, err)
	require.NoError(t, service.drafts[draftID].Shares.Load([]domain.BeneficiaryShare{{BeneficiaryID: "A", Allocation: d("100")}}))

	err = service.RemoveBeneficiary(ctx, draftID, "B")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	state, err := service.ExportDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Len(t, state.Beneficiaries, 2)
	assert.True(t, d("30").Equal(percentOf(t, service, draftID, "BTC", "B")))
}

func TestImportDraft_RequiresShareForEveryBeneficiary(t *testing.T) {
	service := NewWillService(newAssets(aleoBTC()), nil, portfolio.PolicyReject, nil, nil)

	_, err := service.ImportDraft(context.Background(), domain.DraftState{
		OwnerWallet: wallet,
		Beneficiaries: []domain.Beneficiary{
			{ID: "A", DisplayName: "Alice"},
			{ID: "B", DisplayName: "Bob"},
		},
		Allocations: []domain.AllocationRecord{{AssetSymbol: "BTC", BeneficiaryID: "B", Percentage: d("30")}},
		Shares:      []domain.BeneficiaryShare{{BeneficiaryID: "A", Allocation: d("100")}},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRemoveBeneficiary_RedistributesShareAndDropsRecords(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B", "C")
	ctx := context.Background()
	for id, share := range map[string]string{"A": "40", "B": "30", "C": "30"} {
		_, err := service.SetShare(ctx, draftID, id, share)
		require.NoError(t, err)
	}
	_, err := service.SetPortfolioPercentage(ctx, draftID, "A", "25")
	require.NoError(t, err)

	require.NoError(t, service.RemoveBeneficiary(ctx, draftID, "A"))

	state, err := service.ExportDraft(ctx, draftID)
	require.NoError(t, err)
	assert.Len(t, state.Beneficiaries, 2)
	assert.Empty(t, state.Allocations)
	require.Len(t, state.Shares, 2)
	assert.Equal(t, "B", state.Shares[0].BeneficiaryID)
	assert.True(t, d("50").Equal(state.Shares[0].Allocation))
	assert.True(t, d("50").Equal(state.Shares[1].Allocation))
}

func TestSetShareAndReset(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B", "C")
	ctx := context.Background()

	result, err := service.SetShare(ctx, draftID, "B", "130")
	require.NoError(t, err)
	assert.True(t, d("100").Equal(result.Share.Allocation))
	assert.True(t, d("200").Equal(result.Total), "other shares are not renormalised")

	ignored, err := service.SetShare(ctx, draftID, "B", "")
	require.NoError(t, err)
	assert.True(t, ignored.Ignored)

	shares, err := service.ResetShares(ctx, draftID)
	require.NoError(t, err)
	require.Len(t, shares, 3)
	assert.True(t, d("34").Equal(shares[0].Allocation))
	assert.True(t, d("33").Equal(shares[1].Allocation))
	assert.True(t, d("33").Equal(shares[2].Allocation))
}

func TestResetShares_DoesNotTouchAllocations(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()
	_, err := service.SetPortfolioPercentage(ctx, draftID, "A", "70")
	require.NoError(t, err)

	_, err = service.ResetShares(ctx, draftID)
	require.NoError(t, err)

	assert.True(t, d("70").Equal(percentOf(t, service, draftID, "BTC", "A")))
}

func TestSyncSharesToAllocations(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()
	_, err := service.SetPortfolioPercentage(ctx, draftID, "A", "90")
	require.NoError(t, err)
	_, err = service.ResetShares(ctx, draftID)
	require.NoError(t, err)

	results, err := service.SyncSharesToAllocations(ctx, draftID)

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, asset := range []string{"ALEO", "BTC"} {
		assert.True(t, d("50").Equal(percentOf(t, service, draftID, asset, "A")))
		assert.True(t, d("50").Equal(percentOf(t, service, draftID, asset, "B")))
	}
}

func TestSyncSharesToAllocations_AllOrNothing(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()
	_, err := service.SetPortfolioPercentage(ctx, draftID, "A", "20")
	require.NoError(t, err)
	// A keeps 100 from being first, B now asks for 60: 160 in total
	_, err = service.SetShare(ctx, draftID, "B", "60")
	require.NoError(t, err)

	_, err = service.SyncSharesToAllocations(ctx, draftID)

	assert.ErrorIs(t, err, domain.ErrOverAllocation)
	assert.True(t, d("20").Equal(percentOf(t, service, draftID, "BTC", "A")))
	assert.True(t, percentOf(t, service, draftID, "BTC", "B").IsZero())
}

func TestExportImport(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A", "B")
	ctx := context.Background()
	_, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "30"})
	require.NoError(t, err)
	exported, err := service.ExportDraft(ctx, draftID)
	require.NoError(t, err)

	// Prices doubled since the export; stored amounts must not be trusted
	doubled := aleoBTC()
	doubled.Assets[1].USDValue = d("120000")
	other := NewWillService(newAssets(doubled), nil, portfolio.PolicyReject, nil, nil)
	imported, err := other.ImportDraft(ctx, *exported)

	require.NoError(t, err)
	assert.Equal(t, exported.ID, imported.ID)
	require.Len(t, imported.Allocations, 1)
	assert.True(t, d("30").Equal(imported.Allocations[0].Percentage))
	assert.True(t, d("36000").Equal(imported.Allocations[0].USDValue))
	assert.Equal(t, exported.Shares, imported.Shares)

	_, err = other.ImportDraft(ctx, domain.DraftState{
		Allocations: []domain.AllocationRecord{{AssetSymbol: "BTC", BeneficiaryID: "ghost"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDraftRepository)
	service := NewWillService(newAssets(aleoBTC()), repo, portfolio.PolicyReject, nil, nil)
	state, err := service.CreateDraft(ctx, wallet)
	require.NoError(t, err)
	_, err = service.AddBeneficiary(ctx, state.ID, domain.Beneficiary{ID: "A", DisplayName: "Alice"})
	require.NoError(t, err)

	repo.On("Save", ctx, mock.MatchedBy(func(s *domain.DraftState) bool {
		return s.ID == state.ID && len(s.Beneficiaries) == 1
	})).Return(nil)
	require.NoError(t, service.Save(ctx, state.ID))

	stored := &domain.DraftState{
		ID:            uuid.New(),
		OwnerWallet:   wallet,
		Beneficiaries: []domain.Beneficiary{{ID: "Z", DisplayName: "Zoe"}},
		Shares:        []domain.BeneficiaryShare{{BeneficiaryID: "Z", Allocation: d("100")}},
	}
	repo.On("GetByID", ctx, stored.ID).Return(stored, nil)

	loaded, err := service.GetDraft(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Z", loaded.Beneficiaries[0].ID)

	missing := uuid.New()
	repo.On("GetByID", ctx, missing).Return(nil, fmt.Errorf("draft %s: %w", missing, domain.ErrNotFound))
	_, err = service.GetDraft(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	repo.AssertExpectations(t)
}

func TestSaveWithoutRepository(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject)

	assert.ErrorIs(t, service.Save(context.Background(), draftID), ErrPersistenceDisabled)
	_, err := service.Load(context.Background(), draftID)
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
}

func TestOperationsReprojectOnLatestSnapshot(t *testing.T) {
	assets := new(MockAssetSource)
	assets.On("Track", wallet).Return()
	assets.On("Snapshot", wallet).Return(aleoBTC()).Once()
	assets.On("Snapshot", wallet).Return(aleoBTC()).Once()
	assets.On("Snapshot", wallet).Return(domain.AssetSnapshot{Wallet: wallet, Degraded: true})

	service := NewWillService(assets, nil, portfolio.PolicyReject, nil, nil)
	ctx := context.Background()
	state, err := service.CreateDraft(ctx, wallet)
	require.NoError(t, err)
	_, err = service.AddBeneficiary(ctx, state.ID, domain.Beneficiary{ID: "A", DisplayName: "Alice"})
	require.NoError(t, err)

	summary, err := service.Review(ctx, state.ID)

	require.NoError(t, err)
	assert.True(t, summary.Degraded)
	assert.True(t, summary.PortfolioValue.IsZero())
}

func TestOnSnapshot(t *testing.T) {
	service, draftID := setupDraft(t, portfolio.PolicyReject, "A")
	ctx := context.Background()
	_, err := service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: "A", Value: "50"})
	require.NoError(t, err)

	service.OnSnapshot(wallet, domain.AssetSnapshot{})

	service.mu.RLock()
	draft := service.drafts[draftID]
	service.mu.RUnlock()
	record, ok := draft.Table.Record("BTC", "A")
	require.True(t, ok)
	assert.True(t, record.USDValue.IsZero())
}

func TestConcurrentWritesNeverBreakTheCap(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	service, draftID := setupDraft(t, portfolio.PolicyReject, ids...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = service.SetAssetAllocation(ctx, SetAssetAllocationInput{DraftID: draftID, AssetSymbol: "BTC", BeneficiaryID: id, Value: "30"})
			_, _ = service.SetPortfolioPercentage(ctx, draftID, id, "15")
		}(id)
	}
	wg.Wait()

	service.mu.RLock()
	draft := service.drafts[draftID]
	service.mu.RUnlock()
	for _, r := range validation.ValidateAll(draft.Table, draft.Table.Snapshot()) {
		assert.True(t, r.OK, "%s at %s", r.AssetSymbol, r.TotalPercentage)
	}
}
