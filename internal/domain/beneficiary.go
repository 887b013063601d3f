package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Beneficiary is a person receiving part of the portfolio.
// Beneficiaries are owned by the beneficiary-selection flow; the engine only relies on ID.
type Beneficiary struct {
	ID            string
	DisplayName   string
	Relation      string
	WalletAddress string
}

// Validate ensures the beneficiary adheres to domain rules
func (b *Beneficiary) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("beneficiary ID cannot be empty")
	}
	if strings.TrimSpace(b.DisplayName) == "" {
		return errors.New("beneficiary display name cannot be empty")
	}
	return nil
}

// BeneficiaryShare is the coarse, asset-independent weight of a beneficiary.
// It is kept apart from AllocationRecord; the two tables are not required to agree.
type BeneficiaryShare struct {
	BeneficiaryID string
	Allocation    decimal.Decimal // 0..100
}
