package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DraftState is the serialisable content of one will draft.
// Only percentages are carried for allocations; amounts are re-derived on load.
type DraftState struct {
	ID            uuid.UUID
	OwnerWallet   string
	Beneficiaries []Beneficiary
	Allocations   []AllocationRecord
	Shares        []BeneficiaryShare
	UpdatedAt     time.Time
}

// Validate ensures the draft references only known beneficiaries, has unique keys
// and carries exactly one share per beneficiary
func (d *DraftState) Validate() error {
	if d.ID == uuid.Nil {
		return errors.New("draft ID cannot be empty")
	}

	known := make(map[string]bool, len(d.Beneficiaries))
	for _, b := range d.Beneficiaries {
		if err := b.Validate(); err != nil {
			return err
		}
		if known[b.ID] {
			return fmt.Errorf("duplicate beneficiary %s", b.ID)
		}
		known[b.ID] = true
	}

	seen := make(map[[2]string]bool, len(d.Allocations))
	for _, r := range d.Allocations {
		if !known[r.BeneficiaryID] {
			return fmt.Errorf("allocation references unknown beneficiary %s", r.BeneficiaryID)
		}
		key := [2]string{r.AssetSymbol, r.BeneficiaryID}
		if seen[key] {
			return fmt.Errorf("duplicate allocation for asset %s and beneficiary %s", r.AssetSymbol, r.BeneficiaryID)
		}
		seen[key] = true
	}

	shared := make(map[string]bool, len(d.Shares))
	for _, s := range d.Shares {
		if !known[s.BeneficiaryID] {
			return fmt.Errorf("share references unknown beneficiary %s", s.BeneficiaryID)
		}
		if shared[s.BeneficiaryID] {
			return fmt.Errorf("duplicate share for beneficiary %s", s.BeneficiaryID)
		}
		if s.Allocation.IsNegative() || s.Allocation.GreaterThan(Hundred) {
			return fmt.Errorf("share for beneficiary %s must be between 0 and 100", s.BeneficiaryID)
		}
		shared[s.BeneficiaryID] = true
	}
	for _, b := range d.Beneficiaries {
		if !shared[b.ID] {
			return fmt.Errorf("beneficiary %s has no share", b.ID)
		}
	}

	return nil
}
