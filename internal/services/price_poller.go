package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/codyseavey/crypto-tracker/internal/metrics"
	"github.com/codyseavey/crypto-tracker/internal/models"
)

const (
	defaultPollInterval = 15 * time.Second
	defaultWindowCap    = 240
	defaultCurrency     = "usd"

	loadFailedMessage = "Could not load price data"
)

// SeriesFetcher fetches price series for a coin. FetchSeries serves full
// loads and may wait for upstream capacity; FetchLatest serves live ticks and
// must not wait, returning ErrRateLimited instead.
// *MarketDataClient implements it.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, coinID, currency string, r models.TimeRange) ([]models.PricePoint, error)
	FetchLatest(ctx context.Context, coinID, currency string) ([]models.PricePoint, error)
}

// PollerState is the lifecycle state of a PricePoller.
type PollerState string

const (
	PollerIdle       PollerState = "idle"
	PollerLoading    PollerState = "loading"
	PollerLoadFailed PollerState = "load_failed"
	PollerLive       PollerState = "live"
)

// PollerConfig configures a PricePoller. Zero values take defaults.
type PollerConfig struct {
	Currency     string
	PollInterval time.Duration
	WindowCap    int
	Range        models.TimeRange
}

// ChartView is a consistent snapshot of a poller's render state.
type ChartView struct {
	CoinID     string              `json:"coin_id"`
	Range      models.TimeRange    `json:"range"`
	State      PollerState         `json:"state"`
	Label      string              `json:"label"`
	AxisUnit   string              `json:"axis_unit"`
	Points     []models.PricePoint `json:"points"`
	Message    string              `json:"message,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Generation uint64              `json:"generation"`
}

type pollTicker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.C }

func newTimeTicker(d time.Duration) pollTicker { return timeTicker{time.NewTicker(d)} }

// PricePoller keeps a bounded price series for one selected coin. Selecting a
// coin or range does a full load, and while mounted a fixed-interval tick
// fetches the newest sample and appends it. Every selection starts a new
// generation; results from an older generation are dropped on arrival.
type PricePoller struct {
	fetcher   SeriesFetcher
	cfg       PollerConfig
	newTicker func(time.Duration) pollTicker
	now       func() time.Time

	mu         sync.Mutex
	coinID     string
	rng        models.TimeRange
	state      PollerState
	series     *models.PriceSeries
	message    string
	updatedAt  time.Time
	generation uint64
	cancel     context.CancelFunc
	stopped    bool
	onChange   func()

	wg sync.WaitGroup
}

func NewPricePoller(fetcher SeriesFetcher, cfg PollerConfig) *PricePoller {
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.WindowCap <= 0 {
		cfg.WindowCap = defaultWindowCap
	}
	if cfg.Range.Label == "" {
		cfg.Range = models.Range1D
	}

	return &PricePoller{
		fetcher:   fetcher,
		cfg:       cfg,
		newTicker: newTimeTicker,
		now:       time.Now,
		rng:       cfg.Range,
		state:     PollerIdle,
		series:    models.NewPriceSeries(cfg.WindowCap, nil),
	}
}

// SetOnChange registers a callback invoked after every visible state change.
// It runs outside the poller lock and may call View.
func (p *PricePoller) SetOnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Select switches the poller to coinID and reloads. An empty id returns the
// poller to idle.
func (p *PricePoller) Select(coinID string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.coinID = strings.TrimSpace(coinID)
	p.restartLocked()
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// SetRange switches the display range and reloads the current coin.
func (p *PricePoller) SetRange(r models.TimeRange) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.rng = r
	p.restartLocked()
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Stop unmounts the poller: the timer is cancelled, in-flight results are
// dropped and no further state changes happen. Stop blocks until all
// background goroutines have exited.
func (p *PricePoller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// View returns a snapshot of the current render state.
func (p *PricePoller) View() ChartView {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := ""
	if p.coinID != "" {
		label = fmt.Sprintf("%s price (%s)", p.coinID, strings.ToUpper(p.cfg.Currency))
	}

	return ChartView{
		CoinID:     p.coinID,
		Range:      p.rng,
		State:      p.state,
		Label:      label,
		AxisUnit:   p.rng.AxisUnit(),
		Points:     p.series.Points(),
		Message:    p.message,
		UpdatedAt:  p.updatedAt,
		Generation: p.generation,
	}
}

// restartLocked begins a new generation. Callers must hold p.mu.
func (p *PricePoller) restartLocked() {
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.series = models.NewPriceSeries(p.cfg.WindowCap, nil)
	p.message = ""
	p.updatedAt = time.Time{}

	if p.coinID == "" {
		p.state = PollerIdle
		return
	}
	p.state = PollerLoading

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(ctx, p.generation, p.coinID, p.rng)
}

// run drives one generation: a full load and, once it is live, periodic
// ticks until the generation's context is cancelled. A failed or stale load
// ends the generation without polling.
func (p *PricePoller) run(ctx context.Context, gen uint64, coinID string, rng models.TimeRange) {
	defer p.wg.Done()

	if !p.load(ctx, gen, coinID, rng) {
		return
	}

	ticker := p.newTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// ticks do not wait for each other; stale or older results are
			// filtered when applied
			p.wg.Add(1)
			go p.tick(ctx, gen, coinID)
		}
	}
}

// load does the full-range fetch and reports whether the generation went live.
func (p *PricePoller) load(ctx context.Context, gen uint64, coinID string, rng models.TimeRange) bool {
	points, err := p.fetcher.FetchSeries(ctx, coinID, p.cfg.Currency, rng)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.Printf("Price poller: load %s (%s) failed: %v", coinID, rng, err)
		metrics.PollerLoadsTotal.WithLabelValues("error").Inc()
		p.apply(gen, func() bool {
			p.state = PollerLoadFailed
			p.message = loadFailedMessage
			return true
		})
		return false
	}

	applied := p.apply(gen, func() bool {
		p.series = models.NewPriceSeries(p.cfg.WindowCap, points)
		p.state = PollerLive
		p.message = ""
		p.updatedAt = p.now()
		return true
	})
	if applied {
		metrics.PollerLoadsTotal.WithLabelValues("success").Inc()
	} else {
		metrics.PollerLoadsTotal.WithLabelValues("stale").Inc()
	}
	return applied
}

func (p *PricePoller) tick(ctx context.Context, gen uint64, coinID string) {
	defer p.wg.Done()

	points, err := p.fetcher.FetchLatest(ctx, coinID, p.cfg.Currency)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrRateLimited) {
			metrics.PollerTicksTotal.WithLabelValues("skipped").Inc()
			return
		}
		log.Printf("Price poller: tick for %s failed: %v", coinID, err)
		metrics.PollerTicksTotal.WithLabelValues("error").Inc()
		return
	}
	if len(points) == 0 {
		metrics.PollerTicksTotal.WithLabelValues("empty").Inc()
		return
	}

	latest := points[len(points)-1]
	applied := p.apply(gen, func() bool {
		// the window only grows from a successful full load
		if p.state != PollerLive {
			return false
		}
		if !p.series.Append(latest) {
			return false
		}
		p.updatedAt = p.now()
		return true
	})
	if applied {
		metrics.PollerTicksTotal.WithLabelValues("appended").Inc()
	} else {
		metrics.PollerTicksTotal.WithLabelValues("discarded").Inc()
	}
}

// apply runs fn under the lock if gen is still current and the poller is
// mounted, then notifies the change callback when fn reports a change.
func (p *PricePoller) apply(gen uint64, fn func() bool) bool {
	p.mu.Lock()
	if p.stopped || gen != p.generation {
		p.mu.Unlock()
		return false
	}
	changed := fn()
	cb := p.onChange
	p.mu.Unlock()

	if changed && cb != nil {
		cb()
	}
	return changed
}
