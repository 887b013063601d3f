//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcadapter "github.com/YounesEssl/zlegacy-sub000/internal/adapter/grpc"
	"github.com/YounesEssl/zlegacy-sub000/internal/adapter/repository/postgres"
	"github.com/YounesEssl/zlegacy-sub000/internal/config"
)

var (
	db         *postgres.DB
	grpcClient *grpcadapter.Client
	grpcConn   *grpc.ClientConn
)

// TestMain connects to the database and to a server started with DB_ENABLED=true
func TestMain(m *testing.M) {
	ctx := context.Background()

	// 1. Connect to Database
	dbCfg := config.DatabaseConfig{
		ConnStr:  os.Getenv("DB_CONN_STR"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Name:     getEnv("DB_NAME", "zlegacy"),
	}
	var err error
	db, err = postgres.NewDB(ctx, dbCfg.ConnString())
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}

	// 2. Connect to gRPC Server
	grpcConn, err = grpc.NewClient(getEnv("GRPC_ADDRESS", "localhost:8080"), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to gRPC server: %v", err))
	}
	grpcClient = grpcadapter.NewClient(grpcConn, getEnv("API_TOKEN", "dev-token"))

	// Run tests
	code := m.Run()

	grpcConn.Close()
	db.Close()
	os.Exit(code)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newDraft(t *testing.T, ctx context.Context, beneficiaries ...string) string {
	t.Helper()
	draftID, err := grpcClient.CreateDraft(ctx, "aleo1integration"+uuid.NewString()[:8])
	require.NoError(t, err)
	for _, id := range beneficiaries {
		_, err := grpcClient.AddBeneficiary(ctx, draftID, id, "Beneficiary "+id)
		require.NoError(t, err)
	}
	return draftID
}

// TestEndToEndFlow edits a draft over gRPC, saves it and checks what Postgres holds
func TestEndToEndFlow(t *testing.T) {
	ctx := context.Background()
	draftID := newDraft(t, ctx, "A", "B")

	_, err := grpcClient.Call(ctx, "SetAssetAllocation", map[string]interface{}{
		"draft_id": draftID, "asset_symbol": "BTC", "beneficiary_id": "A", "value": "60",
	})
	require.NoError(t, err)
	_, err = grpcClient.Call(ctx, "SetAssetAllocation", map[string]interface{}{
		"draft_id": draftID, "asset_symbol": "BTC", "beneficiary_id": "B", "value": "40",
	})
	require.NoError(t, err)
	_, err = grpcClient.Call(ctx, "SetShare", map[string]interface{}{
		"draft_id": draftID, "beneficiary_id": "B", "value": "25",
	})
	require.NoError(t, err)

	_, err = grpcClient.Call(ctx, "SaveDraft", map[string]interface{}{"draft_id": draftID})
	require.NoError(t, err)

	// Only percentages are persisted
	rows, err := db.QueryContext(ctx,
		`SELECT beneficiary_id, percentage FROM will_allocations WHERE draft_id = $1 AND asset_symbol = 'BTC' ORDER BY beneficiary_id`,
		draftID)
	require.NoError(t, err)
	defer rows.Close()

	stored := make(map[string]decimal.Decimal)
	for rows.Next() {
		var id, pct string
		require.NoError(t, rows.Scan(&id, &pct))
		stored[id] = decimal.RequireFromString(pct)
	}
	require.NoError(t, rows.Err())
	assert.True(t, decimal.NewFromInt(60).Equal(stored["A"]))
	assert.True(t, decimal.NewFromInt(40).Equal(stored["B"]))

	var shareCount int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM will_shares WHERE draft_id = $1`, draftID).Scan(&shareCount))
	assert.Equal(t, 2, shareCount)

	loaded, err := grpcClient.Call(ctx, "LoadDraft", map[string]interface{}{"draft_id": draftID})
	require.NoError(t, err)
	draft := loaded["draft"].(map[string]interface{})
	assert.Equal(t, draftID, draft["id"])
	assert.Len(t, draft["beneficiaries"], 2)
	assert.Len(t, draft["allocations"], 2)
	shares := draft["shares"].([]interface{})
	assert.Equal(t, "25", shares[1].(map[string]interface{})["allocation"])
}

// TestNegativeScenarios checks status codes of rejected calls
func TestNegativeScenarios(t *testing.T) {
	ctx := context.Background()
	draftID := newDraft(t, ctx, "A", "B")

	_, err := grpcClient.Call(ctx, "SetAssetAllocation", map[string]interface{}{
		"draft_id": draftID, "asset_symbol": "ETH", "beneficiary_id": "A", "value": "70",
	})
	require.NoError(t, err)

	_, err = grpcClient.Call(ctx, "SetAssetAllocation", map[string]interface{}{
		"draft_id": draftID, "asset_symbol": "ETH", "beneficiary_id": "B", "value": "40",
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err), "110% of ETH is rejected")

	_, err = grpcClient.Call(ctx, "GetDraft", map[string]interface{}{"draft_id": uuid.NewString()})
	assert.Equal(t, codes.NotFound, status.Code(err))

	unauthenticated := grpcadapter.NewClient(grpcConn, "")
	_, err = unauthenticated.CreateDraft(ctx, "aleo1nobody")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
