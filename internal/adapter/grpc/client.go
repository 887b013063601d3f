package grpc

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the will service over an existing connection
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

// NewClient creates a client; token is sent as the authorization metadata on every call
func NewClient(conn grpc.ClientConnInterface, token string) *Client {
	return &Client{conn: conn, token: token}
}

// Call invokes a will service method with the given request fields
func (c *Client) Call(ctx context.Context, method string, fields map[string]interface{}) (map[string]interface{}, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", c.token)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// CreateDraft starts a draft for the wallet and returns its ID
func (c *Client) CreateDraft(ctx context.Context, ownerWallet string) (string, error) {
	resp, err := c.Call(ctx, "CreateDraft", map[string]interface{}{"owner_wallet": ownerWallet})
	if err != nil {
		return "", err
	}
	draft, _ := resp["draft"].(map[string]interface{})
	id, _ := draft["id"].(string)
	return id, nil
}

// AddBeneficiary adds a beneficiary and returns its (possibly generated) ID
func (c *Client) AddBeneficiary(ctx context.Context, draftID, beneficiaryID, displayName string) (string, error) {
	resp, err := c.Call(ctx, "AddBeneficiary", map[string]interface{}{
		"draft_id":       draftID,
		"beneficiary_id": beneficiaryID,
		"display_name":   displayName,
	})
	if err != nil {
		return "", err
	}
	b, _ := resp["beneficiary"].(map[string]interface{})
	id, _ := b["id"].(string)
	return id, nil
}

// SetPortfolioPercentage sets a portfolio-level percentage and returns the one read back
func (c *Client) SetPortfolioPercentage(ctx context.Context, draftID, beneficiaryID, value string) (decimal.Decimal, error) {
	resp, err := c.Call(ctx, "SetPortfolioPercentage", map[string]interface{}{
		"draft_id":       draftID,
		"beneficiary_id": beneficiaryID,
		"value":          value,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return decimalField(resp, "portfolio_percentage"), nil
}
