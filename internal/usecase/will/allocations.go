package will

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/logging"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/portfolio"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/validation"
)

// SetAssetAllocationInput represents a per-asset edit expressed in any unit
type SetAssetAllocationInput struct {
	DraftID       uuid.UUID
	AssetSymbol   string
	BeneficiaryID string
	Value         string // Raw user input
	Unit          domain.AllocationUnit
}

// AssetWriteResult reports what a per-asset edit stored
type AssetWriteResult struct {
	Ignored    bool // Input was not a number; nothing changed
	Clamped    bool // Lowered to the asset's remaining headroom
	Record     domain.AllocationRecord
	Validation validation.Result
}

// PortfolioWriteResult reports what a portfolio-level edit stored
type PortfolioWriteResult struct {
	Ignored bool
	portfolio.WriteResult
	PortfolioPercentage decimal.Decimal // Read back after the write
}

// SetAssetAllocation sets one beneficiary's claim on one asset
// Logic:
//  1. Ignore non-numeric input
//  2. Convert AMOUNT or USD input to a percentage of the asset
//  3. Write the (clamped) percentage, then validate the asset total
//  4. When the write raised the claim past the cap either roll it back and return an
//     OverAllocationError, or lower it to the remaining headroom (never below the previous
//     claim), depending on the policy
func (s *WillService) SetAssetAllocation(ctx context.Context, input SetAssetAllocationInput) (AssetWriteResult, error) {
	if input.AssetSymbol == "" {
		return AssetWriteResult{}, fmt.Errorf("asset symbol cannot be empty: %w", domain.ErrInvalidInput)
	}
	if input.Unit == "" {
		input.Unit = domain.AllocationUnitPercent
	}

	var result AssetWriteResult
	value, ok := domain.ParseUserDecimal(input.Value)

	err := s.mutateDraft(input.DraftID, func(d *Draft) error {
		if _, exists := d.beneficiary(input.BeneficiaryID); !exists {
			return fmt.Errorf("beneficiary %s: %w", input.BeneficiaryID, domain.ErrNotFound)
		}
		if !ok {
			result.Ignored = true
			result.Record, _ = d.Table.Record(input.AssetSymbol, input.BeneficiaryID)
			result.Validation = validation.Validate(d.Table, input.AssetSymbol)
			return nil
		}

		percentage, err := toPercentage(d, input.AssetSymbol, value, input.Unit)
		if err != nil {
			return err
		}

		previous, hadPrevious := d.Table.Record(input.AssetSymbol, input.BeneficiaryID)
		record := d.Table.Set(input.AssetSymbol, input.BeneficiaryID, percentage)
		check := validation.Validate(d.Table, input.AssetSymbol)

		// Lowering a claim on an already over-allocated asset is always accepted
		if !check.OK && record.Percentage.GreaterThan(previous.Percentage) {
			s.Metrics.RecordOverAllocation(string(domain.ScopeAsset))
			if s.Policy != portfolio.PolicyClamp {
				if hadPrevious {
					d.Table.Restore(previous)
				} else {
					d.Table.Delete(input.AssetSymbol, input.BeneficiaryID)
				}
				return &domain.OverAllocationError{
					Scope:         domain.ScopeAsset,
					AssetSymbol:   input.AssetSymbol,
					BeneficiaryID: input.BeneficiaryID,
					Requested:     record.Percentage,
					Total:         check.TotalPercentage,
				}
			}
			// Clamping never drops below the claim the beneficiary already had
			others := check.TotalPercentage.Sub(record.Percentage)
			headroom := decimal.Max(domain.Hundred.Sub(others), previous.Percentage)
			record = d.Table.Set(input.AssetSymbol, input.BeneficiaryID, headroom)
			check = validation.Validate(d.Table, input.AssetSymbol)
			result.Clamped = true
		}

		result.Record = record
		result.Validation = check
		return nil
	})
	if err != nil {
		s.logRejected("asset allocation rejected", input.DraftID, input.BeneficiaryID, err)
		return AssetWriteResult{}, err
	}

	if !result.Ignored {
		s.Metrics.RecordWrite("asset")
	}
	return result, nil
}

// SetPortfolioPercentage sets one beneficiary's portfolio-level percentage by applying it
// uniformly to every asset. Any asset-specific allocation of the beneficiary is overwritten.
// Non-numeric input is ignored.
func (s *WillService) SetPortfolioPercentage(ctx context.Context, draftID uuid.UUID, beneficiaryID, value string) (PortfolioWriteResult, error) {
	var result PortfolioWriteResult
	p, ok := domain.ParseUserDecimal(value)

	err := s.mutateDraft(draftID, func(d *Draft) error {
		if _, exists := d.beneficiary(beneficiaryID); !exists {
			return fmt.Errorf("beneficiary %s: %w", beneficiaryID, domain.ErrNotFound)
		}
		if !ok {
			result.Ignored = true
			result.BeneficiaryID = beneficiaryID
			result.PortfolioPercentage = portfolio.PortfolioPercentage(d.Table, beneficiaryID)
			return nil
		}

		written, err := portfolio.Apply(d.Table, beneficiaryID, p, s.Policy)
		if err != nil {
			return err
		}
		if written.Clamped {
			s.Metrics.RecordOverAllocation(string(domain.ScopePortfolio))
		}
		result.WriteResult = written
		result.PortfolioPercentage = portfolio.PortfolioPercentage(d.Table, beneficiaryID)
		return nil
	})
	if err != nil {
		var overErr *domain.OverAllocationError
		if errors.As(err, &overErr) {
			s.Metrics.RecordOverAllocation(string(overErr.Scope))
		}
		s.logRejected("portfolio allocation rejected", draftID, beneficiaryID, err)
		return PortfolioWriteResult{}, err
	}

	if !result.Ignored {
		s.Metrics.RecordWrite("portfolio")
	}
	return result, nil
}

// SyncSharesToAllocations makes the allocation table follow the share book: every
// beneficiary's share becomes its portfolio-level percentage.
// Logic:
//  1. Work on a copy of the table
//  2. Zero every beneficiary on every asset so intermediate states never trip validation
//  3. Apply each share through the portfolio write path
//  4. Swap the copy in only when every write succeeded
func (s *WillService) SyncSharesToAllocations(ctx context.Context, draftID uuid.UUID) ([]portfolio.WriteResult, error) {
	var results []portfolio.WriteResult
	err := s.mutateDraft(draftID, func(d *Draft) error {
		table := d.Table.Clone()
		for _, b := range d.Beneficiaries {
			for _, asset := range table.Snapshot().Assets {
				table.Set(asset.Symbol, b.ID, decimal.Zero)
			}
		}

		results = make([]portfolio.WriteResult, 0, d.Shares.Len())
		for _, share := range d.Shares.Shares() {
			written, err := portfolio.Apply(table, share.BeneficiaryID, share.Allocation, s.Policy)
			if err != nil {
				return err
			}
			results = append(results, written)
		}

		d.Table = table
		return nil
	})
	if err != nil {
		s.logRejected("share sync rejected", draftID, "", err)
		return nil, err
	}

	s.Metrics.RecordWrite("sync_shares")
	return results, nil
}

// toPercentage converts an edit to a percentage of the asset
func toPercentage(d *Draft, assetSymbol string, value decimal.Decimal, unit domain.AllocationUnit) (decimal.Decimal, error) {
	switch unit {
	case domain.AllocationUnitPercent:
		return value, nil
	case domain.AllocationUnitAmount, domain.AllocationUnitUSD:
		asset, ok := d.Table.Snapshot().Find(assetSymbol)
		if !ok {
			return decimal.Zero, fmt.Errorf("asset %s is not in the wallet: %w", assetSymbol, domain.ErrInvalidInput)
		}
		if unit == domain.AllocationUnitAmount {
			return portfolio.PercentageFromAmount(asset, value), nil
		}
		return portfolio.PercentageFromUSD(asset, value), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown allocation unit %q: %w", unit, domain.ErrInvalidInput)
	}
}

func (s *WillService) logRejected(msg string, draftID uuid.UUID, beneficiaryID string, err error) {
	s.Logger.Warn(msg,
		logging.Stringer("draft_id", draftID),
		logging.String("beneficiary_id", beneficiaryID),
		logging.Err(err),
	)
}
