package services

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codyseavey/crypto-tracker/internal/metrics"
	"github.com/codyseavey/crypto-tracker/internal/models"
)

const defaultMaxChartSessions = 64

// PollerRegistry holds the mounted chart sessions served over HTTP. It is
// bounded; when full the least recently used session is unmounted.
type PollerRegistry struct {
	fetcher SeriesFetcher
	cfg     PollerConfig
	cache   *lru.Cache[string, *PricePoller]
}

func NewPollerRegistry(fetcher SeriesFetcher, cfg PollerConfig, maxSessions int) (*PollerRegistry, error) {
	if maxSessions <= 0 {
		maxSessions = defaultMaxChartSessions
	}

	cache, err := lru.NewWithEvict(maxSessions, func(id string, p *PricePoller) {
		p.Stop()
		metrics.ChartSessionsActive.Dec()
		log.Printf("Poller registry: unmounted chart %s", id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chart session cache: %w", err)
	}

	return &PollerRegistry{
		fetcher: fetcher,
		cfg:     cfg,
		cache:   cache,
	}, nil
}

// Create mounts a new poller for coinID over r and returns its session id.
func (r *PollerRegistry) Create(coinID string, rng models.TimeRange) (string, *PricePoller) {
	cfg := r.cfg
	cfg.Range = rng

	id := uuid.NewString()
	p := NewPricePoller(r.fetcher, cfg)

	metrics.ChartSessionsActive.Inc()
	r.cache.Add(id, p)
	p.Select(coinID)

	return id, p
}

// Get returns the poller for id and marks it recently used.
func (r *PollerRegistry) Get(id string) (*PricePoller, bool) {
	return r.cache.Get(id)
}

// Delete unmounts and forgets the session. It reports whether it existed.
func (r *PollerRegistry) Delete(id string) bool {
	return r.cache.Remove(id)
}

// StopAll unmounts every session.
func (r *PollerRegistry) StopAll() {
	r.cache.Purge()
}

func (r *PollerRegistry) Len() int {
	return r.cache.Len()
}
