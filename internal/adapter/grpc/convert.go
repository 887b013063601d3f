package grpc

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/review"
)

// stringField reads a request field as text. Numbers are accepted too so that clients can
// send a percentage as 25 or "25".
func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	default:
		return ""
	}
}

func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func beneficiaryToMap(b domain.Beneficiary) map[string]interface{} {
	return map[string]interface{}{
		"id":             b.ID,
		"display_name":   b.DisplayName,
		"relation":       b.Relation,
		"wallet_address": b.WalletAddress,
	}
}

func shareToMap(s domain.BeneficiaryShare) map[string]interface{} {
	return map[string]interface{}{
		"beneficiary_id": s.BeneficiaryID,
		"allocation":     s.Allocation.String(),
	}
}

func sharesToList(shares []domain.BeneficiaryShare) []interface{} {
	out := make([]interface{}, 0, len(shares))
	for _, s := range shares {
		out = append(out, shareToMap(s))
	}
	return out
}

func recordToMap(r domain.AllocationRecord) map[string]interface{} {
	return map[string]interface{}{
		"asset_symbol":   r.AssetSymbol,
		"beneficiary_id": r.BeneficiaryID,
		"percentage":     r.Percentage.String(),
		"amount":         r.Amount.String(),
		"usd_value":      r.USDValue.String(),
	}
}

func recordsToList(records []domain.AllocationRecord) []interface{} {
	out := make([]interface{}, 0, len(records))
	for _, r := range records {
		out = append(out, recordToMap(r))
	}
	return out
}

func draftToMap(d *domain.DraftState) map[string]interface{} {
	beneficiaries := make([]interface{}, 0, len(d.Beneficiaries))
	for _, b := range d.Beneficiaries {
		beneficiaries = append(beneficiaries, beneficiaryToMap(b))
	}
	return map[string]interface{}{
		"id":            d.ID.String(),
		"owner_wallet":  d.OwnerWallet,
		"beneficiaries": beneficiaries,
		"shares":        sharesToList(d.Shares),
		"allocations":   recordsToList(d.Allocations),
		"updated_at":    d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func snapshotToMap(s domain.AssetSnapshot) map[string]interface{} {
	assets := make([]interface{}, 0, len(s.Assets))
	for _, a := range s.Assets {
		assets = append(assets, assetToMap(a))
	}
	return map[string]interface{}{
		"wallet":     s.Wallet,
		"assets":     assets,
		"total_usd":  s.TotalUSD().String(),
		"degraded":   s.Degraded,
		"fetched_at": s.FetchedAt.UTC().Format(time.RFC3339Nano),
	}
}

func assetToMap(a domain.Asset) map[string]interface{} {
	return map[string]interface{}{
		"symbol":    a.Symbol,
		"coin_id":   a.CoinID,
		"balance":   a.Balance.String(),
		"usd_value": a.USDValue.String(),
	}
}

func summaryToMap(s review.Summary) map[string]interface{} {
	beneficiaries := make([]interface{}, 0, len(s.Beneficiaries))
	for _, line := range s.Beneficiaries {
		beneficiaries = append(beneficiaries, map[string]interface{}{
			"beneficiary":          beneficiaryToMap(line.Beneficiary),
			"portfolio_percentage": line.PortfolioPercentage.String(),
			"usd_value":            line.USDValue.String(),
			"share":                line.Share.String(),
			"allocations":          recordsToList(line.Allocations),
		})
	}

	assets := make([]interface{}, 0, len(s.Assets))
	for _, line := range s.Assets {
		assets = append(assets, map[string]interface{}{
			"asset":               assetToMap(line.Asset),
			"allocated_percent":   line.AllocatedPercent.String(),
			"allocated_usd":       line.AllocatedUSD.String(),
			"over_allocated":      line.OverAllocated,
			"beneficiaries_count": line.BeneficiariesCount,
		})
	}

	warnings := make([]interface{}, 0, len(s.Warnings))
	for _, w := range s.Warnings {
		warnings = append(warnings, w)
	}

	return map[string]interface{}{
		"assets_allocated":           s.AssetsAllocated,
		"beneficiary_count":          s.BeneficiaryCount,
		"portfolio_value":            s.PortfolioValue.String(),
		"total_usd_allocated":        s.TotalUSDAllocated.String(),
		"total_allocated_percentage": s.TotalAllocatedPercentage.String(),
		"share_total":                s.ShareTotal.String(),
		"beneficiaries":              beneficiaries,
		"assets":                     assets,
		"degraded":                   s.Degraded,
		"warnings":                   warnings,
	}
}

// decimalField parses a decimal response field; missing or malformed values read as zero
func decimalField(m map[string]interface{}, name string) decimal.Decimal {
	s, _ := m[name].(string)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
