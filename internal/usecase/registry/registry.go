package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/domain"
	"github.com/YounesEssl/zlegacy-sub000/internal/logging"
	"github.com/YounesEssl/zlegacy-sub000/internal/metrics"
)

// RefreshFunc is called after every wallet refresh performed by Run
type RefreshFunc func(wallet string, snapshot domain.AssetSnapshot)

// AssetRegistry combines wallet balances and live prices into asset snapshots.
// Snapshots are published under a lock; everything else in the engine reads them synchronously.
type AssetRegistry struct {
	BalanceClient domain.BalanceClient
	PriceClient   domain.PriceClient
	PriceCache    domain.PriceCache // Optional last-known-good prices
	CacheTTL      time.Duration
	Logger        logging.Logger
	Metrics       *metrics.Metrics

	now func() time.Time

	mu        sync.RWMutex
	wallets   map[string]bool
	snapshots map[string]domain.AssetSnapshot
}

// NewAssetRegistry creates a new AssetRegistry instance
func NewAssetRegistry(
	balanceClient domain.BalanceClient,
	priceClient domain.PriceClient,
	priceCache domain.PriceCache,
	cacheTTL time.Duration,
	logger logging.Logger,
	m *metrics.Metrics,
) *AssetRegistry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AssetRegistry{
		BalanceClient: balanceClient,
		PriceClient:   priceClient,
		PriceCache:    priceCache,
		CacheTTL:      cacheTTL,
		Logger:        logger.Named("registry"),
		Metrics:       m,
		now:           time.Now,
		wallets:       make(map[string]bool),
		snapshots:     make(map[string]domain.AssetSnapshot),
	}
}

// Track registers a wallet for periodic refresh
func (r *AssetRegistry) Track(wallet string) {
	r.mu.Lock()
	r.wallets[wallet] = true
	count := len(r.wallets)
	r.mu.Unlock()
	r.Metrics.SetTrackedWallets(count)
}

// Wallets returns the tracked wallets in lexical order
func (r *AssetRegistry) Wallets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallets := make([]string, 0, len(r.wallets))
	for w := range r.wallets {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	return wallets
}

// Snapshot returns the last snapshot built for the wallet, or the empty snapshot
func (r *AssetRegistry) Snapshot(wallet string) domain.AssetSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.snapshots[wallet]
	if !ok {
		return domain.AssetSnapshot{Wallet: wallet}
	}
	return snapshot
}

// Refresh rebuilds the wallet's snapshot and publishes it
// Logic:
//  1. Fetch holdings; on failure publish an empty degraded snapshot and return ErrStaleAssetData
//  2. Fetch live prices by lower-case coin id; on failure fall back to cached prices, else price everything at 0
//  3. Cache fresh prices for later fallbacks
//  4. USD value = balance * price, 0 for coins without a price
func (r *AssetRegistry) Refresh(ctx context.Context, wallet string) (domain.AssetSnapshot, error) {
	start := r.now()
	log := r.Logger.With(logging.String("wallet", wallet))

	holdings, err := r.BalanceClient.Balances(ctx, wallet)
	if err != nil {
		snapshot := domain.AssetSnapshot{Wallet: wallet, FetchedAt: start, Degraded: true}
		r.publish(snapshot)
		r.Metrics.RecordRefresh(metrics.RefreshFailed, r.now().Sub(start))
		log.Warn("balance lookup failed, publishing empty snapshot", logging.Err(err))
		return snapshot, fmt.Errorf("failed to fetch balances for %s: %w: %v", wallet, domain.ErrStaleAssetData, err)
	}

	coinIDs := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if id := normalizeCoinID(h.CoinID); id != "" {
			coinIDs = append(coinIDs, id)
		}
	}

	degraded := false
	prices, err := r.PriceClient.Prices(ctx, coinIDs)
	if err != nil {
		degraded = true
		log.Warn("price feed failed, using cached prices", logging.Err(err))
		prices = r.cachedPrices(ctx, coinIDs)
	} else if r.PriceCache != nil && len(prices) > 0 {
		if cacheErr := r.PriceCache.Set(ctx, prices, r.CacheTTL); cacheErr != nil {
			log.Warn("failed to cache prices", logging.Err(cacheErr))
		}
	}

	snapshot := domain.AssetSnapshot{
		Wallet:    wallet,
		Assets:    make([]domain.Asset, 0, len(holdings)),
		FetchedAt: start,
		Degraded:  degraded,
	}
	for _, h := range holdings {
		price := decimal.Zero
		if p, ok := prices[normalizeCoinID(h.CoinID)]; ok {
			price = p
		}
		snapshot.Assets = append(snapshot.Assets, domain.Asset{
			Symbol:   h.Symbol,
			CoinID:   h.CoinID,
			Balance:  h.Balance,
			USDValue: h.Balance.Mul(price),
		})
	}

	r.publish(snapshot)

	result := metrics.RefreshOK
	if degraded {
		result = metrics.RefreshDegraded
	}
	elapsed := r.now().Sub(start)
	r.Metrics.RecordRefresh(result, elapsed)
	log.Debug("asset snapshot refreshed",
		logging.Int("assets", len(snapshot.Assets)),
		logging.Stringer("total_usd", snapshot.TotalUSD()),
		logging.Bool("degraded", degraded),
		logging.Duration("elapsed", elapsed),
	)

	return snapshot, nil
}

// RefreshAll refreshes every tracked wallet, calling onRefresh after each one
func (r *AssetRegistry) RefreshAll(ctx context.Context, onRefresh RefreshFunc) {
	for _, wallet := range r.Wallets() {
		if ctx.Err() != nil {
			return
		}
		snapshot, _ := r.Refresh(ctx, wallet)
		if onRefresh != nil {
			onRefresh(wallet, snapshot)
		}
	}
}

// Run refreshes all tracked wallets immediately and then on every tick until ctx is done
func (r *AssetRegistry) Run(ctx context.Context, interval time.Duration, onRefresh RefreshFunc) {
	r.Logger.Info("asset refresh loop started", logging.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.RefreshAll(ctx, onRefresh)
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("asset refresh loop stopped")
			return
		case <-ticker.C:
			r.RefreshAll(ctx, onRefresh)
		}
	}
}

func (r *AssetRegistry) cachedPrices(ctx context.Context, coinIDs []string) map[string]decimal.Decimal {
	if r.PriceCache == nil {
		return map[string]decimal.Decimal{}
	}
	prices, err := r.PriceCache.Get(ctx, coinIDs)
	if err != nil {
		r.Logger.Warn("price cache unavailable, pricing assets at 0", logging.Err(err))
		return map[string]decimal.Decimal{}
	}
	return prices
}

// normalizeCoinID matches the lower-case ids price feeds key their results by
func normalizeCoinID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func (r *AssetRegistry) publish(snapshot domain.AssetSnapshot) {
	r.mu.Lock()
	r.snapshots[snapshot.Wallet] = snapshot
	r.mu.Unlock()
}
