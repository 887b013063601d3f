package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/registry"
	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/will"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "zlegacy.will.v1.WillService"

// WillServiceServer is the server API for the will service.
// Every message is a google.protobuf.Struct; decimals travel as strings.
type WillServiceServer interface {
	CreateDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddBeneficiary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveBeneficiary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetShare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetShares(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAssetAllocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPortfolioPercentage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncShares(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshAssets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Review(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(WillServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(WillServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(WillServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// WillServiceDesc describes the will service for grpc.Server.RegisterService
var WillServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WillServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateDraft", WillServiceServer.CreateDraft),
		unaryHandler("GetDraft", WillServiceServer.GetDraft),
		unaryHandler("SaveDraft", WillServiceServer.SaveDraft),
		unaryHandler("LoadDraft", WillServiceServer.LoadDraft),
		unaryHandler("AddBeneficiary", WillServiceServer.AddBeneficiary),
		unaryHandler("RemoveBeneficiary", WillServiceServer.RemoveBeneficiary),
		unaryHandler("SetShare", WillServiceServer.SetShare),
		unaryHandler("ResetShares", WillServiceServer.ResetShares),
		unaryHandler("SetAssetAllocation", WillServiceServer.SetAssetAllocation),
		unaryHandler("SetPortfolioPercentage", WillServiceServer.SetPortfolioPercentage),
		unaryHandler("SyncShares", WillServiceServer.SyncShares),
		unaryHandler("RefreshAssets", WillServiceServer.RefreshAssets),
		unaryHandler("Review", WillServiceServer.Review),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "zlegacy/will/v1/will.proto",
}

// RegisterWillServiceServer registers the will service on a gRPC server
func RegisterWillServiceServer(s grpc.ServiceRegistrar, srv WillServiceServer) {
	s.RegisterService(&WillServiceDesc, srv)
}

// Server implements WillServiceServer on top of the will use case
type Server struct {
	WillService *will.WillService
	Registry    *registry.AssetRegistry // Optional; RefreshAssets is unavailable without it
}

// NewServer creates a new gRPC server instance
func NewServer(willService *will.WillService, assetRegistry *registry.AssetRegistry) *Server {
	return &Server{
		WillService: willService,
		Registry:    assetRegistry,
	}
}

// CreateDraft handles the CreateDraft RPC
func (s *Server) CreateDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	state, err := s.WillService.CreateDraft(ctx, stringField(req, "owner_wallet"))
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"draft": draftToMap(state)})
}

// GetDraft handles the GetDraft RPC
func (s *Server) GetDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	state, err := s.WillService.GetDraft(ctx, draftID)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"draft": draftToMap(state)})
}

// SaveDraft handles the SaveDraft RPC
func (s *Server) SaveDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	if err := s.WillService.Save(ctx, draftID); err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"draft_id": draftID.String()})
}

// LoadDraft handles the LoadDraft RPC
func (s *Server) LoadDraft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	state, err := s.WillService.Load(ctx, draftID)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"draft": draftToMap(state)})
}

// AddBeneficiary handles the AddBeneficiary RPC
func (s *Server) AddBeneficiary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	added, err := s.WillService.AddBeneficiary(ctx, draftID, domain.Beneficiary{
		ID:            stringField(req, "beneficiary_id"),
		DisplayName:   stringField(req, "display_name"),
		Relation:      stringField(req, "relation"),
		WalletAddress: stringField(req, "wallet_address"),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"beneficiary": beneficiaryToMap(added)})
}

// RemoveBeneficiary handles the RemoveBeneficiary RPC
func (s *Server) RemoveBeneficiary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	if err := s.WillService.RemoveBeneficiary(ctx, draftID, stringField(req, "beneficiary_id")); err != nil {
		return nil, mapError(err)
	}
	state, err := s.WillService.ExportDraft(ctx, draftID)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"draft": draftToMap(state)})
}

// SetShare handles the SetShare RPC
func (s *Server) SetShare(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	result, err := s.WillService.SetShare(ctx, draftID, stringField(req, "beneficiary_id"), stringField(req, "value"))
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{
		"ignored": result.Ignored,
		"share":   shareToMap(result.Share),
		"total":   result.Total.String(),
	})
}

// ResetShares handles the ResetShares RPC
func (s *Server) ResetShares(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	shares, err := s.WillService.ResetShares(ctx, draftID)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"shares": sharesToList(shares)})
}

// SetAssetAllocation handles the SetAssetAllocation RPC
func (s *Server) SetAssetAllocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	unit, err := domain.ParseAllocationUnit(stringField(req, "unit"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid unit: %v", err)
	}

	result, err := s.WillService.SetAssetAllocation(ctx, will.SetAssetAllocationInput{
		DraftID:       draftID,
		AssetSymbol:   strings.ToUpper(stringField(req, "asset_symbol")),
		BeneficiaryID: stringField(req, "beneficiary_id"),
		Value:         stringField(req, "value"),
		Unit:          unit,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{
		"ignored":     result.Ignored,
		"clamped":     result.Clamped,
		"record":      recordToMap(result.Record),
		"asset_ok":    result.Validation.OK,
		"asset_total": result.Validation.TotalPercentage.String(),
	})
}

// SetPortfolioPercentage handles the SetPortfolioPercentage RPC
func (s *Server) SetPortfolioPercentage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	result, err := s.WillService.SetPortfolioPercentage(ctx, draftID, stringField(req, "beneficiary_id"), stringField(req, "value"))
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{
		"ignored":              result.Ignored,
		"applied":              result.Applied.String(),
		"clamped":              result.Clamped,
		"assets_written":       result.AssetsWritten,
		"portfolio_percentage": result.PortfolioPercentage.String(),
	})
}

// SyncShares handles the SyncShares RPC
func (s *Server) SyncShares(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	results, err := s.WillService.SyncSharesToAllocations(ctx, draftID)
	if err != nil {
		return nil, mapError(err)
	}
	written := make([]interface{}, 0, len(results))
	for _, r := range results {
		written = append(written, map[string]interface{}{
			"beneficiary_id": r.BeneficiaryID,
			"applied":        r.Applied.String(),
			"clamped":        r.Clamped,
		})
	}
	return toStruct(map[string]interface{}{"results": written})
}

// RefreshAssets handles the RefreshAssets RPC: it refreshes the owner wallet of a draft now
// instead of waiting for the next registry tick
func (s *Server) RefreshAssets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.Registry == nil {
		return nil, status.Error(codes.Unimplemented, "asset registry is not configured")
	}
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	state, err := s.WillService.ExportDraft(ctx, draftID)
	if err != nil {
		return nil, mapError(err)
	}

	snapshot, refreshErr := s.Registry.Refresh(ctx, state.OwnerWallet)
	s.WillService.OnSnapshot(state.OwnerWallet, snapshot)
	if refreshErr != nil && !errors.Is(refreshErr, domain.ErrStaleAssetData) {
		return nil, mapError(refreshErr)
	}
	return toStruct(map[string]interface{}{
		"snapshot": snapshotToMap(snapshot),
		"stale":    refreshErr != nil,
	})
}

// Review handles the Review RPC
func (s *Server) Review(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	draftID, err := draftIDField(req)
	if err != nil {
		return nil, err
	}
	summary, err := s.WillService.Review(ctx, draftID)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"summary": summaryToMap(summary)})
}

func draftIDField(req *structpb.Struct) (uuid.UUID, error) {
	draftID, err := uuid.Parse(stringField(req, "draft_id"))
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid draft_id format: %v", err)
	}
	return draftID, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var overErr *domain.OverAllocationError
	switch {
	case errors.As(err, &overErr):
		return status.Errorf(codes.FailedPrecondition, "%s", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Errorf(codes.InvalidArgument, "%s", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s", err.Error())
	case errors.Is(err, domain.ErrDuplicateBeneficiary):
		return status.Errorf(codes.AlreadyExists, "%s", err.Error())
	case errors.Is(err, will.ErrPersistenceDisabled):
		return status.Errorf(codes.Unimplemented, "%s", err.Error())
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", err.Error())
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", err.Error())
}
