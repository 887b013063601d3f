package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrOverAllocation is returned when an edit would push an asset or the portfolio past 100%
	ErrOverAllocation = errors.New("over-allocation")

	// ErrStaleAssetData marks a snapshot that could not be refreshed
	ErrStaleAssetData = errors.New("asset data unavailable")

	// ErrInvalidInput covers malformed identifiers and units
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for unknown drafts and beneficiaries
	ErrNotFound = errors.New("not found")

	// ErrDuplicateBeneficiary is returned when a beneficiary ID is added twice
	ErrDuplicateBeneficiary = errors.New("beneficiary already exists")
)

// OverAllocationScope tells which total was exceeded
type OverAllocationScope string

const (
	ScopeAsset     OverAllocationScope = "asset"
	ScopePortfolio OverAllocationScope = "portfolio"
)

// OverAllocationError names the asset and beneficiary implicated by a rejected edit
type OverAllocationError struct {
	Scope         OverAllocationScope
	AssetSymbol   string // Empty for portfolio scope
	BeneficiaryID string
	Requested     decimal.Decimal
	Total         decimal.Decimal // Total the edit would have produced
}

// Error implements the error interface
func (e *OverAllocationError) Error() string {
	if e.Scope == ScopeAsset {
		return fmt.Sprintf("over-allocation: asset %s would be %s%% allocated after setting %s%% for beneficiary %s",
			e.AssetSymbol, e.Total.StringFixed(1), e.Requested.String(), e.BeneficiaryID)
	}
	return fmt.Sprintf("over-allocation: portfolio would be %s%% allocated after setting %s%% for beneficiary %s",
		e.Total.StringFixed(1), e.Requested.String(), e.BeneficiaryID)
}

// Unwrap lets errors.Is match ErrOverAllocation
func (e *OverAllocationError) Unwrap() error {
	return ErrOverAllocation
}
