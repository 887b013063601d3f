package will

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/logging"
	"github.com/YounesEssl/zlegacy-sub000/internal/metrics"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/allocation"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/portfolio"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/redistributor"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/review"
)

// ErrPersistenceDisabled is returned by Save and Load when no draft repository is configured
var ErrPersistenceDisabled = errors.New("draft persistence is not configured")

// Draft is one will being edited: its beneficiaries, the allocation table and the share book.
// All access goes through WillService, which holds mu for the duration of an operation.
type Draft struct {
	ID            uuid.UUID
	OwnerWallet   string
	Beneficiaries []domain.Beneficiary
	Table         *allocation.Table
	Shares        *redistributor.ShareBook
	UpdatedAt     time.Time

	mu sync.Mutex
}

func (d *Draft) beneficiary(id string) (domain.Beneficiary, bool) {
	for _, b := range d.Beneficiaries {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Beneficiary{}, false
}

func (d *Draft) export() *domain.DraftState {
	state := &domain.DraftState{
		ID:            d.ID,
		OwnerWallet:   d.OwnerWallet,
		Beneficiaries: append([]domain.Beneficiary(nil), d.Beneficiaries...),
		Allocations:   d.Table.Records(),
		Shares:        d.Shares.Shares(),
		UpdatedAt:     d.UpdatedAt,
	}
	return state
}

// WillService handles every mutation of will drafts
type WillService struct {
	Assets    domain.AssetSource
	DraftRepo domain.DraftRepository // Optional
	Policy    portfolio.WritePolicy
	Logger    logging.Logger
	Metrics   *metrics.Metrics

	now func() time.Time

	mu     sync.RWMutex
	drafts map[uuid.UUID]*Draft
}

// NewWillService creates a new WillService instance
func NewWillService(
	assets domain.AssetSource,
	draftRepo domain.DraftRepository,
	policy portfolio.WritePolicy,
	logger logging.Logger,
	m *metrics.Metrics,
) *WillService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if policy == "" {
		policy = portfolio.PolicyReject
	}
	return &WillService{
		Assets:    assets,
		DraftRepo: draftRepo,
		Policy:    policy,
		Logger:    logger.Named("will"),
		Metrics:   m,
		now:       time.Now,
		drafts:    make(map[uuid.UUID]*Draft),
	}
}

// CreateDraft starts an empty will for the owner's wallet and registers the wallet for refresh
func (s *WillService) CreateDraft(ctx context.Context, ownerWallet string) (*domain.DraftState, error) {
	ownerWallet = strings.TrimSpace(ownerWallet)
	if ownerWallet == "" {
		return nil, fmt.Errorf("owner wallet cannot be empty: %w", domain.ErrInvalidInput)
	}

	s.Assets.Track(ownerWallet)
	draft := &Draft{
		ID:          uuid.New(),
		OwnerWallet: ownerWallet,
		Table:       allocation.NewTable(s.Assets.Snapshot(ownerWallet)),
		Shares:      redistributor.NewShareBook(),
		UpdatedAt:   s.now(),
	}

	s.mu.Lock()
	s.drafts[draft.ID] = draft
	s.mu.Unlock()

	s.Logger.Info("draft created", logging.Stringer("draft_id", draft.ID), logging.String("wallet", ownerWallet))
	return draft.export(), nil
}

// GetDraft returns the current state of a draft, loading it from the repository when it
// is not held in memory
func (s *WillService) GetDraft(ctx context.Context, draftID uuid.UUID) (*domain.DraftState, error) {
	state, err := s.ExportDraft(ctx, draftID)
	if errors.Is(err, domain.ErrNotFound) && s.DraftRepo != nil {
		return s.Load(ctx, draftID)
	}
	return state, err
}

// ExportDraft returns the serialisable state of an in-memory draft
func (s *WillService) ExportDraft(ctx context.Context, draftID uuid.UUID) (*domain.DraftState, error) {
	var state *domain.DraftState
	err := s.withDraft(draftID, func(d *Draft) error {
		state = d.export()
		return nil
	})
	return state, err
}

// ImportDraft replaces (or creates) an in-memory draft from a serialised state.
// Stored amounts are ignored: records are re-projected on the latest snapshot.
func (s *WillService) ImportDraft(ctx context.Context, state domain.DraftState) (*domain.DraftState, error) {
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	shares := redistributor.NewShareBook()
	if err := shares.Load(state.Shares); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	if state.OwnerWallet != "" {
		s.Assets.Track(state.OwnerWallet)
	}
	table := allocation.NewTable(s.Assets.Snapshot(state.OwnerWallet))
	for _, r := range state.Allocations {
		table.Set(r.AssetSymbol, r.BeneficiaryID, r.Percentage)
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	draft := &Draft{
		ID:            state.ID,
		OwnerWallet:   state.OwnerWallet,
		Beneficiaries: append([]domain.Beneficiary(nil), state.Beneficiaries...),
		Table:         table,
		Shares:        shares,
		UpdatedAt:     updatedAt,
	}

	s.mu.Lock()
	s.drafts[draft.ID] = draft
	s.mu.Unlock()

	return draft.export(), nil
}

// Save persists a draft through the repository
func (s *WillService) Save(ctx context.Context, draftID uuid.UUID) error {
	if s.DraftRepo == nil {
		return ErrPersistenceDisabled
	}
	state, err := s.ExportDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if err := s.DraftRepo.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	s.Logger.Info("draft saved", logging.Stringer("draft_id", draftID))
	return nil
}

// Load reads a draft from the repository and makes it the in-memory version
func (s *WillService) Load(ctx context.Context, draftID uuid.UUID) (*domain.DraftState, error) {
	if s.DraftRepo == nil {
		return nil, ErrPersistenceDisabled
	}
	state, err := s.DraftRepo.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return s.ImportDraft(ctx, *state)
}

// OnSnapshot re-projects every draft owned by the wallet; it is the registry refresh callback
func (s *WillService) OnSnapshot(wallet string, snapshot domain.AssetSnapshot) {
	s.mu.RLock()
	drafts := make([]*Draft, 0)
	for _, d := range s.drafts {
		if d.OwnerWallet == wallet {
			drafts = append(drafts, d)
		}
	}
	s.mu.RUnlock()

	for _, d := range drafts {
		d.mu.Lock()
		d.Table.UseSnapshot(snapshot)
		d.mu.Unlock()
	}
}

// Review projects the read-only summary of a draft
func (s *WillService) Review(ctx context.Context, draftID uuid.UUID) (review.Summary, error) {
	var summary review.Summary
	err := s.withDraft(draftID, func(d *Draft) error {
		summary = review.Project(d.Beneficiaries, d.Table, d.Shares.Shares())
		return nil
	})
	return summary, err
}

// withDraft runs fn with the draft locked and its table projected on the latest snapshot
func (s *WillService) withDraft(draftID uuid.UUID, fn func(d *Draft) error) error {
	s.mu.RLock()
	draft, ok := s.drafts[draftID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("draft %s: %w", draftID, domain.ErrNotFound)
	}

	draft.mu.Lock()
	defer draft.mu.Unlock()
	draft.Table.UseSnapshot(s.Assets.Snapshot(draft.OwnerWallet))
	return fn(draft)
}

// mutateDraft is withDraft for operations that change the draft
func (s *WillService) mutateDraft(draftID uuid.UUID, fn func(d *Draft) error) error {
	return s.withDraft(draftID, func(d *Draft) error {
		if err := fn(d); err != nil {
			return err
		}
		d.UpdatedAt = s.now()
		return nil
	})
}
