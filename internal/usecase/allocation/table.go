package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
)

type key struct {
	asset       string
	beneficiary string
}

// Table is the authoritative store of (asset, beneficiary) -> percentage records.
// It keeps the cached Amount/USDValue of every record projected on the current snapshot.
// It does not enforce the per-asset cap: momentarily invalid states must be representable
// while the user is editing, so callers validate before or after writing.
type Table struct {
	records  map[key]domain.AllocationRecord
	snapshot domain.AssetSnapshot
}

// NewTable creates an empty table projected on the given snapshot
func NewTable(snapshot domain.AssetSnapshot) *Table {
	return &Table{
		records:  make(map[key]domain.AllocationRecord),
		snapshot: snapshot,
	}
}

// Snapshot returns the snapshot the records are currently projected on
func (t *Table) Snapshot() domain.AssetSnapshot {
	return t.snapshot
}

// UseSnapshot replaces the asset snapshot and re-projects every record on it
func (t *Table) UseSnapshot(snapshot domain.AssetSnapshot) {
	t.snapshot = snapshot
	for k, r := range t.records {
		asset, ok := snapshot.Find(k.asset)
		t.records[k] = r.Project(asset, ok)
	}
}

// Get returns the percentage allocated to beneficiary on asset (0 if absent)
func (t *Table) Get(assetSymbol, beneficiaryID string) decimal.Decimal {
	r, ok := t.records[key{assetSymbol, beneficiaryID}]
	if !ok {
		return decimal.Zero
	}
	return r.Percentage
}

// Record returns the full record for a pair
func (t *Table) Record(assetSymbol, beneficiaryID string) (domain.AllocationRecord, bool) {
	r, ok := t.records[key{assetSymbol, beneficiaryID}]
	return r, ok
}

// Set upserts a record.
// Logic:
//  1. Clamp percentage to [0, 100]
//  2. Recompute Amount and USDValue from the current snapshot
//  3. Store the record under (asset, beneficiary)
//
// The stored percentage is not rounded.
func (t *Table) Set(assetSymbol, beneficiaryID string, percentage decimal.Decimal) domain.AllocationRecord {
	record := domain.AllocationRecord{
		AssetSymbol:   assetSymbol,
		BeneficiaryID: beneficiaryID,
		Percentage:    domain.ClampPercentage(percentage),
	}
	asset, ok := t.snapshot.Find(assetSymbol)
	record = record.Project(asset, ok)
	t.records[key{assetSymbol, beneficiaryID}] = record
	return record
}

// Restore puts back a record previously read with Record (used to roll back a write)
func (t *Table) Restore(record domain.AllocationRecord) {
	t.Set(record.AssetSymbol, record.BeneficiaryID, record.Percentage)
}

// Delete removes a single record; absence is equivalent to 0%
func (t *Table) Delete(assetSymbol, beneficiaryID string) {
	delete(t.records, key{assetSymbol, beneficiaryID})
}

// RemoveBeneficiary deletes every record owned by the beneficiary
// Returns the number of records removed
func (t *Table) RemoveBeneficiary(beneficiaryID string) int {
	removed := 0
	for k := range t.records {
		if k.beneficiary == beneficiaryID {
			delete(t.records, k)
			removed++
		}
	}
	return removed
}

// Records returns all records sorted by asset symbol, then beneficiary ID
func (t *Table) Records() []domain.AllocationRecord {
	return t.filter(func(key) bool { return true })
}

// RecordsFor returns the records of one beneficiary
func (t *Table) RecordsFor(beneficiaryID string) []domain.AllocationRecord {
	return t.filter(func(k key) bool { return k.beneficiary == beneficiaryID })
}

// RecordsForAsset returns the records of one asset
func (t *Table) RecordsForAsset(assetSymbol string) []domain.AllocationRecord {
	return t.filter(func(k key) bool { return k.asset == assetSymbol })
}

// AssetSymbols returns every asset symbol that has at least one record
func (t *Table) AssetSymbols() []string {
	seen := make(map[string]bool)
	symbols := make([]string, 0)
	for k := range t.records {
		if !seen[k.asset] {
			seen[k.asset] = true
			symbols = append(symbols, k.asset)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// Clone returns an independent copy of the table sharing the same snapshot
func (t *Table) Clone() *Table {
	clone := NewTable(t.snapshot)
	for k, r := range t.records {
		clone.records[k] = r
	}
	return clone
}

// Len returns the number of stored records
func (t *Table) Len() int {
	return len(t.records)
}

func (t *Table) filter(match func(key) bool) []domain.AllocationRecord {
	records := make([]domain.AllocationRecord, 0, len(t.records))
	for k, r := range t.records {
		if match(k) {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].AssetSymbol != records[j].AssetSymbol {
			return records[i].AssetSymbol < records[j].AssetSymbol
		}
		return records[i].BeneficiaryID < records[j].BeneficiaryID
	})
	return records
}
