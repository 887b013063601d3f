package will

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/logging"
)

// ShareWriteResult reports a direct share edit
type ShareWriteResult struct {
	Ignored bool // Input was not a number; nothing changed
	Share   domain.BeneficiaryShare
	Total   decimal.Decimal // Sum of all shares after the edit
}

// AddBeneficiary adds a beneficiary to the draft
// Logic:
//  1. Generate an ID when none is given
//  2. Reject duplicates
//  3. The first beneficiary gets a 100 share, later ones 0
func (s *WillService) AddBeneficiary(ctx context.Context, draftID uuid.UUID, beneficiary domain.Beneficiary) (domain.Beneficiary, error) {
	beneficiary.ID = strings.TrimSpace(beneficiary.ID)
	if beneficiary.ID == "" {
		beneficiary.ID = uuid.NewString()
	}
	if err := beneficiary.Validate(); err != nil {
		return domain.Beneficiary{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	err := s.mutateDraft(draftID, func(d *Draft) error {
		if _, exists := d.beneficiary(beneficiary.ID); exists {
			return fmt.Errorf("beneficiary %s: %w", beneficiary.ID, domain.ErrDuplicateBeneficiary)
		}
		if err := d.Shares.Add(beneficiary.ID); err != nil {
			return err
		}
		d.Beneficiaries = append(d.Beneficiaries, beneficiary)
		return nil
	})
	if err != nil {
		return domain.Beneficiary{}, err
	}

	s.Metrics.RecordWrite("add_beneficiary")
	s.Logger.Info("beneficiary added",
		logging.Stringer("draft_id", draftID),
		logging.String("beneficiary_id", beneficiary.ID),
	)
	return beneficiary, nil
}

// RemoveBeneficiary removes a beneficiary, all of its allocation records and its share.
// The removed share is redistributed over the remaining beneficiaries.
func (s *WillService) RemoveBeneficiary(ctx context.Context, draftID uuid.UUID, beneficiaryID string) error {
	removedRecords := 0
	err := s.mutateDraft(draftID, func(d *Draft) error {
		if _, exists := d.beneficiary(beneficiaryID); !exists {
			return fmt.Errorf("beneficiary %s: %w", beneficiaryID, domain.ErrNotFound)
		}

		// The share goes first so a failure leaves the draft untouched
		if _, err := d.Shares.Remove(beneficiaryID); err != nil {
			return err
		}

		remaining := make([]domain.Beneficiary, 0, len(d.Beneficiaries)-1)
		for _, b := range d.Beneficiaries {
			if b.ID != beneficiaryID {
				remaining = append(remaining, b)
			}
		}
		d.Beneficiaries = remaining
		removedRecords = d.Table.RemoveBeneficiary(beneficiaryID)
		return nil
	})
	if err != nil {
		return err
	}

	s.Metrics.RecordWrite("remove_beneficiary")
	s.Logger.Info("beneficiary removed",
		logging.Stringer("draft_id", draftID),
		logging.String("beneficiary_id", beneficiaryID),
		logging.Int("records_removed", removedRecords),
	)
	return nil
}

// SetShare writes one beneficiary's share (clamped to [0,100]); other shares are untouched.
// Non-numeric input is ignored.
func (s *WillService) SetShare(ctx context.Context, draftID uuid.UUID, beneficiaryID, value string) (ShareWriteResult, error) {
	result := ShareWriteResult{Share: domain.BeneficiaryShare{BeneficiaryID: beneficiaryID}}
	share, ok := domain.ParseUserDecimal(value)

	err := s.mutateDraft(draftID, func(d *Draft) error {
		if _, exists := d.beneficiary(beneficiaryID); !exists {
			return fmt.Errorf("beneficiary %s: %w", beneficiaryID, domain.ErrNotFound)
		}
		if !ok {
			result.Ignored = true
			result.Share.Allocation = d.Shares.Get(beneficiaryID)
			result.Total = d.Shares.Total()
			return nil
		}
		stored, err := d.Shares.Set(beneficiaryID, share)
		if err != nil {
			return err
		}
		result.Share.Allocation = stored
		result.Total = d.Shares.Total()
		return nil
	})
	if err != nil {
		return ShareWriteResult{}, err
	}

	if !result.Ignored {
		s.Metrics.RecordWrite("share")
	}
	return result, nil
}

// ResetShares recomputes every share as an equal split; allocation records are not touched
func (s *WillService) ResetShares(ctx context.Context, draftID uuid.UUID) ([]domain.BeneficiaryShare, error) {
	var shares []domain.BeneficiaryShare
	err := s.mutateDraft(draftID, func(d *Draft) error {
		d.Shares.ResetToEqual()
		shares = d.Shares.Shares()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordWrite("reset_shares")
	return shares, nil
}
