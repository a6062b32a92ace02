package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codyseavey/crypto-tracker/internal/metrics"
	"github.com/codyseavey/crypto-tracker/internal/models"
)

const (
	defaultMarketPageSize        = 80
	defaultMarketRefresh         = time.Minute
	remoteSearchIDLimit          = 30
	remoteSearchRehydratePerPage = 50
)

// MarketLister is the part of the market data client the coin list uses.
type MarketLister interface {
	ListMarkets(ctx context.Context, currency string, pageSize, page int, ids []string) ([]models.MarketSnapshot, error)
	SearchCoins(ctx context.Context, query string) ([]models.CoinSearchResult, error)
}

type CoinListConfig struct {
	Currency        string
	PageSize        int
	RefreshInterval time.Duration
}

// CoinList caches the market snapshot and answers searches against it.
type CoinList struct {
	client MarketLister
	cfg    CoinListConfig

	mu          sync.RWMutex
	snapshots   []models.MarketSnapshot
	lastRefresh time.Time
}

func NewCoinList(client MarketLister, cfg CoinListConfig) *CoinList {
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultMarketPageSize
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultMarketRefresh
	}
	return &CoinList{client: client, cfg: cfg}
}

// Start begins the background market refresh
func (l *CoinList) Start(ctx context.Context) {
	log.Printf("Coin list started: will refresh %d markets every %v", l.cfg.PageSize, l.cfg.RefreshInterval)

	if err := l.Refresh(ctx); err != nil {
		log.Printf("Coin list: initial refresh failed: %v", err)
	}

	ticker := time.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Coin list stopping...")
			return
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				log.Printf("Coin list: refresh failed: %v", err)
			}
		}
	}
}

// Refresh fetches the first market page and replaces the cached snapshot.
// On failure the previous snapshot is kept.
func (l *CoinList) Refresh(ctx context.Context) error {
	snapshots, err := l.client.ListMarkets(ctx, l.cfg.Currency, l.cfg.PageSize, 1, nil)
	if err != nil {
		metrics.MarketRefreshTotal.WithLabelValues("error").Inc()
		return err
	}

	l.mu.Lock()
	l.snapshots = snapshots
	l.lastRefresh = time.Now()
	l.mu.Unlock()

	metrics.MarketRefreshTotal.WithLabelValues("success").Inc()
	metrics.MarketSnapshotSize.Set(float64(len(snapshots)))
	return nil
}

// Snapshots returns a copy of the cached snapshot in server order.
func (l *CoinList) Snapshots() []models.MarketSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.MarketSnapshot, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}

func (l *CoinList) LastRefresh() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastRefresh
}

// Search matches query case-insensitively against the cached names and
// symbols. Only when nothing matches locally does it fall back to the remote
// search, whose first ids are rehydrated into full snapshots. An empty query
// returns the whole cached list. No matches yield an empty slice and a nil
// error; a failed remote lookup returns the error.
func (l *CoinList) Search(ctx context.Context, query string) ([]models.MarketSnapshot, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return l.Snapshots(), nil
	}

	if local := filterSnapshots(l.Snapshots(), query); len(local) > 0 {
		metrics.SearchRequestsTotal.WithLabelValues("local").Inc()
		return local, nil
	}

	hits, err := l.client.SearchCoins(ctx, query)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("remote search for %q: %w", query, err)
	}

	ids := make([]string, 0, remoteSearchIDLimit)
	for _, hit := range hits {
		if len(ids) == remoteSearchIDLimit {
			break
		}
		ids = append(ids, hit.ID)
	}
	if len(ids) == 0 {
		metrics.SearchRequestsTotal.WithLabelValues("empty").Inc()
		return []models.MarketSnapshot{}, nil
	}

	snapshots, err := l.client.ListMarkets(ctx, l.cfg.Currency, remoteSearchRehydratePerPage, 1, ids)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rehydrate search results: %w", err)
	}

	metrics.SearchRequestsTotal.WithLabelValues("remote").Inc()
	if snapshots == nil {
		snapshots = []models.MarketSnapshot{}
	}
	return snapshots, nil
}

func filterSnapshots(snapshots []models.MarketSnapshot, query string) []models.MarketSnapshot {
	q := strings.ToLower(query)
	var out []models.MarketSnapshot
	for _, s := range snapshots {
		if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Symbol), q) {
			out = append(out, s)
		}
	}
	return out
}

// SortKey selects the column the coin table is sorted by.
type SortKey string

const (
	SortByRank   SortKey = "rank"
	SortByPrice  SortKey = "price"
	SortByChange SortKey = "change_24h"
	SortByName   SortKey = "name"
	SortBySymbol SortKey = "symbol"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByRank, nil
	case SortByRank, SortByPrice, SortByChange, SortByName, SortBySymbol:
		return k, nil
	}
	return "", fmt.Errorf("unsupported sort key %q", s)
}

// SortSnapshots returns a sorted copy. Rows without a 24h change always sort
// last, and unranked rows sort after ranked ones.
func SortSnapshots(snapshots []models.MarketSnapshot, key SortKey, desc bool) []models.MarketSnapshot {
	out := make([]models.MarketSnapshot, len(snapshots))
	copy(out, snapshots)

	less := func(a, b models.MarketSnapshot) (bool, bool) {
		switch key {
		case SortByPrice:
			return a.CurrentPrice.LessThan(b.CurrentPrice), a.CurrentPrice.Equal(b.CurrentPrice)
		case SortByName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			return an < bn, an == bn
		case SortBySymbol:
			as, bs := strings.ToLower(a.Symbol), strings.ToLower(b.Symbol)
			return as < bs, as == bs
		case SortByChange:
			ac, bc := a.PriceChangePercent24h.Decimal, b.PriceChangePercent24h.Decimal
			return ac.LessThan(bc), ac.Equal(bc)
		default:
			return a.MarketCapRank < b.MarketCapRank, a.MarketCapRank == b.MarketCapRank
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]

		if key == SortByChange && a.PriceChangePercent24h.Valid != b.PriceChangePercent24h.Valid {
			return a.PriceChangePercent24h.Valid
		}
		if (key == SortByRank || key == "") && (a.MarketCapRank == 0) != (b.MarketCapRank == 0) {
			return a.MarketCapRank != 0
		}

		lt, eq := less(a, b)
		if eq {
			return false
		}
		if desc {
			return !lt
		}
		return lt
	})
	return out
}
