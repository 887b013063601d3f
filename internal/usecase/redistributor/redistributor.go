package redistributor

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
)

// EqualSplit returns n shares of floor(100/n), the first one carrying the remainder
// Logic:
//  1. Every share gets floor(100/n)
//  2. The leftover 100 - n*floor(100/n) goes to the first share
//
// Safety: the shares always sum to exactly 100 (nothing lost to rounding)
func EqualSplit(n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	base := domain.Hundred.Div(decimal.NewFromInt(int64(n))).Floor()
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] = shares[0].Add(domain.Hundred.Sub(base.Mul(decimal.NewFromInt(int64(n)))))
	return shares
}

// RedistributeRemoved spreads a removed share over the remaining ones
// Returns a new slice; the input is not modified
// Logic:
//  1. Each remaining share gains removed/n and is rounded to the nearest integer
//  2. A positive leftover 100 - sum goes entirely to the first remaining share
//  3. A negative leftover (rounding up overshot) is taken back starting from the first
//     share, never pushing a share below 0
//
// Safety: the result always sums to exactly 100
func RedistributeRemoved(remaining []decimal.Decimal, removed decimal.Decimal) []decimal.Decimal {
	if len(remaining) == 0 {
		return nil
	}

	portion := removed.Div(decimal.NewFromInt(int64(len(remaining))))
	result := make([]decimal.Decimal, len(remaining))
	sum := decimal.Zero
	for i, share := range remaining {
		result[i] = share.Add(portion).Round(0)
		sum = sum.Add(result[i])
	}

	leftover := domain.Hundred.Sub(sum)
	if !leftover.IsNegative() {
		result[0] = result[0].Add(leftover)
		return result
	}

	excess := leftover.Neg()
	for i := range result {
		if excess.IsZero() {
			break
		}
		take := decimal.Min(result[i], excess)
		result[i] = result[i].Sub(take)
		excess = excess.Sub(take)
	}
	return result
}

// ShareBook holds the beneficiary shares in insertion order
// It is independent from the allocation table; the two are only reconciled on request
type ShareBook struct {
	order  []string
	shares map[string]decimal.Decimal
}

// NewShareBook creates an empty share book
func NewShareBook() *ShareBook {
	return &ShareBook{shares: make(map[string]decimal.Decimal)}
}

// Add registers a beneficiary: the first one receives 100, later ones 0
func (s *ShareBook) Add(beneficiaryID string) error {
	if _, exists := s.shares[beneficiaryID]; exists {
		return fmt.Errorf("share for %s: %w", beneficiaryID, domain.ErrDuplicateBeneficiary)
	}
	share := decimal.Zero
	if len(s.order) == 0 {
		share = domain.Hundred
	}
	s.order = append(s.order, beneficiaryID)
	s.shares[beneficiaryID] = share
	return nil
}

// Remove drops a beneficiary and redistributes its share to the remaining ones
// Returns the share that was removed
func (s *ShareBook) Remove(beneficiaryID string) (decimal.Decimal, error) {
	removed, exists := s.shares[beneficiaryID]
	if !exists {
		return decimal.Zero, fmt.Errorf("share for %s: %w", beneficiaryID, domain.ErrNotFound)
	}

	delete(s.shares, beneficiaryID)
	order := make([]string, 0, len(s.order)-1)
	for _, id := range s.order {
		if id != beneficiaryID {
			order = append(order, id)
		}
	}
	s.order = order

	if len(s.order) == 0 {
		return removed, nil
	}

	current := make([]decimal.Decimal, len(s.order))
	for i, id := range s.order {
		current[i] = s.shares[id]
	}
	for i, share := range RedistributeRemoved(current, removed) {
		s.shares[s.order[i]] = share
	}
	return removed, nil
}

// ResetToEqual recomputes every share as an equal split
func (s *ShareBook) ResetToEqual() {
	for i, share := range EqualSplit(len(s.order)) {
		s.shares[s.order[i]] = share
	}
}

// Set writes one beneficiary's share, clamped to [0, 100]; other shares are not renormalised
func (s *ShareBook) Set(beneficiaryID string, share decimal.Decimal) (decimal.Decimal, error) {
	if _, exists := s.shares[beneficiaryID]; !exists {
		return decimal.Zero, fmt.Errorf("share for %s: %w", beneficiaryID, domain.ErrNotFound)
	}
	clamped := domain.ClampPercentage(share)
	s.shares[beneficiaryID] = clamped
	return clamped, nil
}

// Get returns a beneficiary's share (0 if unknown)
func (s *ShareBook) Get(beneficiaryID string) decimal.Decimal {
	return s.shares[beneficiaryID]
}

// Shares returns every share in insertion order
func (s *ShareBook) Shares() []domain.BeneficiaryShare {
	shares := make([]domain.BeneficiaryShare, 0, len(s.order))
	for _, id := range s.order {
		shares = append(shares, domain.BeneficiaryShare{BeneficiaryID: id, Allocation: s.shares[id]})
	}
	return shares
}

// Total returns the sum of all shares
func (s *ShareBook) Total() decimal.Decimal {
	total := decimal.Zero
	for _, share := range s.shares {
		total = total.Add(share)
	}
	return total
}

// Len returns the number of beneficiaries in the book
func (s *ShareBook) Len() int {
	return len(s.order)
}

// Load replaces the book content with previously exported shares
func (s *ShareBook) Load(shares []domain.BeneficiaryShare) error {
	order := make([]string, 0, len(shares))
	values := make(map[string]decimal.Decimal, len(shares))
	for _, share := range shares {
		if share.BeneficiaryID == "" {
			return errors.New("share beneficiary ID cannot be empty")
		}
		if _, exists := values[share.BeneficiaryID]; exists {
			return fmt.Errorf("share for %s: %w", share.BeneficiaryID, domain.ErrDuplicateBeneficiary)
		}
		order = append(order, share.BeneficiaryID)
		values[share.BeneficiaryID] = domain.ClampPercentage(share.Allocation)
	}
	s.order = order
	s.shares = values
	return nil
}
