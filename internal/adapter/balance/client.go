package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
)

// Client looks up wallet holdings from the balance service.
// GET {base}/wallets/{address}/balances -> [{"symbol":"BTC","coinId":"bitcoin","balance":"0.5"}]
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a balance client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Balances returns the holdings of a wallet
// Holdings with an empty symbol or a negative balance are dropped
func (c *Client) Balances(ctx context.Context, wallet string) ([]domain.Holding, error) {
	if strings.TrimSpace(wallet) == "" {
		return nil, fmt.Errorf("wallet address cannot be empty: %w", domain.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/wallets/%s/balances", c.baseURL, url.PathEscape(wallet))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build balance request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch balances for %s: unexpected status %d", wallet, resp.StatusCode)
	}

	var raw []domain.Holding
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode balance response: %w", err)
	}

	holdings := make([]domain.Holding, 0, len(raw))
	for _, h := range raw {
		h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
		if h.Symbol == "" || h.Balance.IsNegative() {
			continue
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}
