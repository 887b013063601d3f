package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const keyPrefix = "price:"

// PriceCache keeps the last known good USD price of every coin in Redis
type PriceCache struct {
	client *redis.Client
}

// NewPriceCache wraps an existing Redis client
func NewPriceCache(client *redis.Client) *PriceCache {
	return &PriceCache{client: client}
}

// Connect opens a Redis client and checks it answers
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Get returns the cached prices of the requested coins; coins without a price are absent
func (c *PriceCache) Get(ctx context.Context, coinIDs []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(coinIDs))
	if len(coinIDs) == 0 {
		return prices, nil
	}

	keys := make([]string, len(coinIDs))
	for i, id := range coinIDs {
		keys[i] = keyPrefix + id
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read cached prices: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(s)
		if err != nil {
			continue
		}
		prices[coinIDs[i]] = price
	}
	return prices, nil
}

// Set stores every price with the given time to live
func (c *PriceCache) Set(ctx context.Context, prices map[string]decimal.Decimal, ttl time.Duration) error {
	if len(prices) == 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	for id, price := range prices {
		pipe.Set(ctx, keyPrefix+id, price.String(), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache prices: %w", err)
	}
	return nil
}
