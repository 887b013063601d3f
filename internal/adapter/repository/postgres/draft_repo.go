package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
)

// draftRepository implements domain.DraftRepository
type draftRepository struct {
	db *DB
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(db *DB) domain.DraftRepository {
	return &draftRepository{db: db}
}

// Save replaces the stored draft with the given state in a single database transaction
func (r *draftRepository) Save(ctx context.Context, draft *domain.DraftState) error {
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	upsertDraftQuery := `
		INSERT INTO will_drafts (id, owner_wallet, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET owner_wallet = EXCLUDED.owner_wallet, updated_at = EXCLUDED.updated_at
	`
	if _, err := dbTx.ExecContext(ctx, upsertDraftQuery, draft.ID, draft.OwnerWallet, draft.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert draft: %w", err)
	}

	// Children are rewritten wholesale
	for _, table := range []string{"will_beneficiaries", "will_shares", "will_allocations"} {
		if _, err := dbTx.ExecContext(ctx, "DELETE FROM "+table+" WHERE draft_id = $1", draft.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	insertBeneficiaryQuery := `
		INSERT INTO will_beneficiaries (draft_id, position, id, display_name, relation, wallet_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, b := range draft.Beneficiaries {
		if _, err := dbTx.ExecContext(ctx, insertBeneficiaryQuery,
			draft.ID, i, b.ID, b.DisplayName, b.Relation, b.WalletAddress,
		); err != nil {
			return fmt.Errorf("failed to insert beneficiary: %w", err)
		}
	}

	insertShareQuery := `
		INSERT INTO will_shares (draft_id, position, beneficiary_id, allocation)
		VALUES ($1, $2, $3, $4)
	`
	for i, s := range draft.Shares {
		if _, err := dbTx.ExecContext(ctx, insertShareQuery,
			draft.ID, i, s.BeneficiaryID, s.Allocation.String(),
		); err != nil {
			return fmt.Errorf("failed to insert share: %w", err)
		}
	}

	insertAllocationQuery := `
		INSERT INTO will_allocations (draft_id, asset_symbol, beneficiary_id, percentage)
		VALUES ($1, $2, $3, $4)
	`
	for _, a := range draft.Allocations {
		if _, err := dbTx.ExecContext(ctx, insertAllocationQuery,
			draft.ID, a.AssetSymbol, a.BeneficiaryID, a.Percentage.String(),
		); err != nil {
			return fmt.Errorf("failed to insert allocation: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a draft with its beneficiaries, shares and allocation percentages
func (r *draftRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DraftState, error) {
	draftQuery := `
		SELECT id, owner_wallet, updated_at
		FROM will_drafts
		WHERE id = $1
	`

	var draft domain.DraftState
	err := r.db.QueryRowContext(ctx, draftQuery, id).Scan(&draft.ID, &draft.OwnerWallet, &draft.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get draft by ID: %w", err)
	}

	if draft.Beneficiaries, err = r.beneficiaries(ctx, id); err != nil {
		return nil, err
	}
	if draft.Shares, err = r.shares(ctx, id); err != nil {
		return nil, err
	}
	if draft.Allocations, err = r.allocations(ctx, id); err != nil {
		return nil, err
	}

	return &draft, nil
}

func (r *draftRepository) beneficiaries(ctx context.Context, draftID uuid.UUID) ([]domain.Beneficiary, error) {
	query := `
		SELECT id, display_name, relation, wallet_address
		FROM will_beneficiaries
		WHERE draft_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query beneficiaries: %w", err)
	}
	defer rows.Close()

	var beneficiaries []domain.Beneficiary
	for rows.Next() {
		var b domain.Beneficiary
		if err := rows.Scan(&b.ID, &b.DisplayName, &b.Relation, &b.WalletAddress); err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		beneficiaries = append(beneficiaries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beneficiaries: %w", err)
	}
	return beneficiaries, nil
}

func (r *draftRepository) shares(ctx context.Context, draftID uuid.UUID) ([]domain.BeneficiaryShare, error) {
	query := `
		SELECT beneficiary_id, allocation
		FROM will_shares
		WHERE draft_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shares: %w", err)
	}
	defer rows.Close()

	var shares []domain.BeneficiaryShare
	for rows.Next() {
		var s domain.BeneficiaryShare
		var allocationStr string
		if err := rows.Scan(&s.BeneficiaryID, &allocationStr); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		if s.Allocation, err = decimal.NewFromString(allocationStr); err != nil {
			return nil, fmt.Errorf("failed to parse share allocation: %w", err)
		}
		shares = append(shares, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shares: %w", err)
	}
	return shares, nil
}

func (r *draftRepository) allocations(ctx context.Context, draftID uuid.UUID) ([]domain.AllocationRecord, error) {
	query := `
		SELECT asset_symbol, beneficiary_id, percentage
		FROM will_allocations
		WHERE draft_id = $1
		ORDER BY asset_symbol, beneficiary_id
	`
	rows, err := r.db.QueryContext(ctx, query, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var records []domain.AllocationRecord
	for rows.Next() {
		var a domain.AllocationRecord
		var percentageStr string
		if err := rows.Scan(&a.AssetSymbol, &a.BeneficiaryID, &percentageStr); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		if a.Percentage, err = decimal.NewFromString(percentageStr); err != nil {
			return nil, fmt.Errorf("failed to parse allocation percentage: %w", err)
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}
	return records, nil
}
