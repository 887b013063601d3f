package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
)

// draftFile is the on-disk form of a draft together with the last asset snapshot of its
// owner wallet, so that every command except refresh works offline.
// Allocation amounts are not stored; they are projected from the snapshot on load.
type draftFile struct {
	ID            uuid.UUID         `json:"id"`
	OwnerWallet   string            `json:"ownerWallet"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	Beneficiaries []beneficiaryJSON `json:"beneficiaries"`
	Shares        []shareJSON       `json:"shares"`
	Allocations   []allocationJSON  `json:"allocations"`
	Snapshot      snapshotJSON      `json:"snapshot"`
}

type beneficiaryJSON struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	Relation      string `json:"relation,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

type shareJSON struct {
	BeneficiaryID string          `json:"beneficiaryId"`
	Allocation    decimal.Decimal `json:"allocation"`
}

type allocationJSON struct {
	AssetSymbol   string          `json:"asset"`
	BeneficiaryID string          `json:"beneficiaryId"`
	Percentage    decimal.Decimal `json:"percentage"`
}

type assetJSON struct {
	Symbol   string          `json:"symbol"`
	CoinID   string          `json:"coinId,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
	USDValue decimal.Decimal `json:"usdValue"`
}

type snapshotJSON struct {
	Assets    []assetJSON `json:"assets"`
	FetchedAt time.Time   `json:"fetchedAt"`
	Degraded  bool        `json:"degraded,omitempty"`
}

func newDraftFile(state *domain.DraftState, snapshot domain.AssetSnapshot) *draftFile {
	f := &draftFile{
		ID:            state.ID,
		OwnerWallet:   state.OwnerWallet,
		UpdatedAt:     state.UpdatedAt,
		Beneficiaries: make([]beneficiaryJSON, 0, len(state.Beneficiaries)),
		Shares:        make([]shareJSON, 0, len(state.Shares)),
		Allocations:   make([]allocationJSON, 0, len(state.Allocations)),
		Snapshot: snapshotJSON{
			Assets:    make([]assetJSON, 0, len(snapshot.Assets)),
			FetchedAt: snapshot.FetchedAt,
			Degraded:  snapshot.Degraded,
		},
	}
	for _, b := range state.Beneficiaries {
		f.Beneficiaries = append(f.Beneficiaries, beneficiaryJSON(b))
	}
	for _, s := range state.Shares {
		f.Shares = append(f.Shares, shareJSON(s))
	}
	for _, r := range state.Allocations {
		f.Allocations = append(f.Allocations, allocationJSON{
			AssetSymbol:   r.AssetSymbol,
			BeneficiaryID: r.BeneficiaryID,
			Percentage:    r.Percentage,
		})
	}
	for _, a := range snapshot.Assets {
		f.Snapshot.Assets = append(f.Snapshot.Assets, assetJSON(a))
	}
	return f
}

func (f *draftFile) state() domain.DraftState {
	state := domain.DraftState{
		ID:          f.ID,
		OwnerWallet: f.OwnerWallet,
		UpdatedAt:   f.UpdatedAt,
	}
	for _, b := range f.Beneficiaries {
		state.Beneficiaries = append(state.Beneficiaries, domain.Beneficiary(b))
	}
	for _, s := range f.Shares {
		state.Shares = append(state.Shares, domain.BeneficiaryShare(s))
	}
	for _, r := range f.Allocations {
		state.Allocations = append(state.Allocations, domain.AllocationRecord{
			AssetSymbol:   r.AssetSymbol,
			BeneficiaryID: r.BeneficiaryID,
			Percentage:    r.Percentage,
		})
	}
	return state
}

func (f *draftFile) snapshot() domain.AssetSnapshot {
	snapshot := domain.AssetSnapshot{
		Wallet:    f.OwnerWallet,
		FetchedAt: f.Snapshot.FetchedAt,
		Degraded:  f.Snapshot.Degraded,
	}
	for _, a := range f.Snapshot.Assets {
		snapshot.Assets = append(snapshot.Assets, domain.Asset(a))
	}
	return snapshot
}

// readDraftFile decodes the draft file at path
func readDraftFile(path string) (*draftFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("draft file %q does not exist, run init first", path)
		}
		return nil, fmt.Errorf("failed to read draft file: %w", err)
	}
	var f draftFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode draft file %q: %w", path, err)
	}
	return &f, nil
}

// writeDraftFile encodes the draft next to path and renames it into place
func writeDraftFile(path string, f *draftFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode draft file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".draft-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary draft file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write draft file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write draft file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace draft file: %w", err)
	}
	return nil
}
