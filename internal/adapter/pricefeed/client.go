package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client fetches USD prices from a CoinGecko-compatible "simple price" endpoint.
// Response shape: {"bitcoin": {"usd": 60000.5}, "aleo": {"usd": 0.21}}
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a price client paced at requestsPerSecond
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond int) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// Prices returns the USD price of every requested coin the feed knows.
// Coins absent from the response are absent from the map; callers read them as 0.
func (c *Client) Prices(ctx context.Context, coinIDs []string) (map[string]decimal.Decimal, error) {
	ids := normalizeIDs(coinIDs)
	prices := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for price feed rate limit: %w", err)
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	endpoint := c.baseURL + "/simple/price?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch prices: unexpected status %d", resp.StatusCode)
	}

	var body any
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	for _, id := range ids {
		value, err := jsonpath.Get(fmt.Sprintf("$[%q].usd", id), body)
		if err != nil {
			// Unknown coin
			continue
		}
		price, ok := toDecimal(value)
		if !ok || price.IsNegative() {
			continue
		}
		prices[id] = price
	}

	return prices, nil
}

func normalizeIDs(coinIDs []string) []string {
	seen := make(map[string]bool, len(coinIDs))
	ids := make([]string, 0, len(coinIDs))
	for _, id := range coinIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
