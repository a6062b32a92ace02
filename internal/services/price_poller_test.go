package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/codyseavey/crypto-tracker/internal/metrics"
	"github.com/codyseavey/crypto-tracker/internal/models"
)

type fetchCall struct {
	coinID string
	rng    models.TimeRange
}

// fakeFetcher serves series from per-call handlers and records every call.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	load  func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error)
	tick  func(ctx context.Context, coinID string) ([]models.PricePoint, error)
}

func (f *fakeFetcher) FetchSeries(ctx context.Context, coinID, currency string, r models.TimeRange) ([]models.PricePoint, error) {
	f.record(coinID, r)
	return f.load(ctx, coinID, r)
}

func (f *fakeFetcher) FetchLatest(ctx context.Context, coinID, currency string) ([]models.PricePoint, error) {
	f.record(coinID, models.TickRange)
	if f.tick == nil {
		return nil, nil
	}
	return f.tick(ctx, coinID)
}

func (f *fakeFetcher) record(coinID string, r models.TimeRange) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{coinID: coinID, rng: r})
	f.mu.Unlock()
}

func (f *fakeFetcher) count(r models.TimeRange) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.rng == r {
			n++
		}
	}
	return n
}

type manualTicker struct {
	c      chan time.Time
	starts int32
}

func (m *manualTicker) Chan() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()                  {}

func (m *manualTicker) started() int { return int(atomic.LoadInt32(&m.starts)) }

func newTestPoller(f *fakeFetcher, windowCap int) (*PricePoller, *manualTicker) {
	p := NewPricePoller(f, PollerConfig{WindowCap: windowCap})
	mt := &manualTicker{c: make(chan time.Time)}
	p.newTicker = func(time.Duration) pollTicker {
		atomic.AddInt32(&mt.starts, 1)
		return mt
	}
	return p, mt
}

func counterValue(c prometheus.Counter) float64 {
	return testutil.ToFloat64(c)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func pts(pairs ...[2]float64) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(pairs))
	for _, pair := range pairs {
		out = append(out, models.NewPricePoint(int64(pair[0]), pair[1]))
	}
	return out
}

func assertPrices(t *testing.T, got []models.PricePoint, want []models.PricePoint) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d points, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) || !got[i].Price.Equal(want[i].Price) {
			t.Errorf("point %d = (%v, %s), want (%v, %s)", i,
				got[i].Timestamp.UnixMilli(), got[i].Price, want[i].Timestamp.UnixMilli(), want[i].Price)
		}
	}
}

func TestPricePoller_LoadThenTickAppends(t *testing.T) {
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			return pts([2]float64{1000, 100}, [2]float64{2000, 101}), nil
		},
		tick: func(ctx context.Context, coinID string) ([]models.PricePoint, error) {
			return pts([2]float64{3000, 102}), nil
		},
	}
	p, mt := newTestPoller(f, 240)
	defer p.Stop()

	p.Select("bitcoin")
	waitFor(t, "live state", func() bool { return p.View().State == PollerLive })

	view := p.View()
	if view.Label != "bitcoin price (USD)" {
		t.Errorf("Label = %q, want %q", view.Label, "bitcoin price (USD)")
	}
	if view.AxisUnit != "hour" {
		t.Errorf("AxisUnit = %q, want hour for 1D", view.AxisUnit)
	}
	assertPrices(t, view.Points, pts([2]float64{1000, 100}, [2]float64{2000, 101}))

	mt.c <- time.Now()
	waitFor(t, "tick append", func() bool { return len(p.View().Points) == 3 })

	assertPrices(t, p.View().Points, pts([2]float64{1000, 100}, [2]float64{2000, 101}, [2]float64{3000, 102}))
}

func TestPricePoller_StaleLoadDiscarded(t *testing.T) {
	releaseA := make(chan struct{})
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			if coinID == "coin-a" {
				// ignores cancellation so the result arrives late
				<-releaseA
				return pts([2]float64{1000, 1}), nil
			}
			return pts([2]float64{5000, 50}, [2]float64{6000, 60}), nil
		},
	}
	p, _ := newTestPoller(f, 240)
	defer p.Stop()
	release := sync.OnceFunc(func() { close(releaseA) })
	defer release()

	stale := metrics.PollerLoadsTotal.WithLabelValues("stale")
	staleBefore := counterValue(stale)

	p.Select("coin-a")
	waitFor(t, "coin-a load started", func() bool { return f.count(models.Range1D) == 1 })
	p.Select("coin-b")
	waitFor(t, "coin-b live", func() bool {
		v := p.View()
		return v.CoinID == "coin-b" && v.State == PollerLive
	})

	// coin-a resolves while the poller is still mounted on coin-b
	release()
	waitFor(t, "coin-a result dropped", func() bool { return counterValue(stale) > staleBefore })

	view := p.View()
	if view.CoinID != "coin-b" || view.State != PollerLive {
		t.Fatalf("view = %s/%s, want coin-b/live", view.CoinID, view.State)
	}
	assertPrices(t, view.Points, pts([2]float64{5000, 50}, [2]float64{6000, 60}))
}

func TestPricePoller_StaleTickDiscarded(t *testing.T) {
	releaseTick := make(chan struct{})
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			if coinID == "coin-a" {
				return pts([2]float64{1000, 1}), nil
			}
			return pts([2]float64{5000, 50}), nil
		},
		tick: func(ctx context.Context, coinID string) ([]models.PricePoint, error) {
			// ignores cancellation so the result arrives late
			<-releaseTick
			return pts([2]float64{9000, 90}), nil
		},
	}
	p, mt := newTestPoller(f, 240)
	defer p.Stop()
	release := sync.OnceFunc(func() { close(releaseTick) })
	defer release()

	discarded := metrics.PollerTicksTotal.WithLabelValues("discarded")
	discardedBefore := counterValue(discarded)

	p.Select("coin-a")
	waitFor(t, "coin-a live", func() bool { return p.View().State == PollerLive })
	mt.c <- time.Now()
	waitFor(t, "coin-a tick started", func() bool { return f.count(models.TickRange) == 1 })

	p.Select("coin-b")
	waitFor(t, "coin-b live", func() bool {
		v := p.View()
		return v.CoinID == "coin-b" && v.State == PollerLive
	})

	release()
	waitFor(t, "coin-a tick dropped", func() bool { return counterValue(discarded) > discardedBefore })

	assertPrices(t, p.View().Points, pts([2]float64{5000, 50}))
}

func TestPricePoller_RateLimitedTickIsSkipped(t *testing.T) {
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			return pts([2]float64{1000, 100}), nil
		},
		tick: func(ctx context.Context, coinID string) ([]models.PricePoint, error) {
			return nil, ErrRateLimited
		},
	}
	p, mt := newTestPoller(f, 240)
	defer p.Stop()

	skipped := metrics.PollerTicksTotal.WithLabelValues("skipped")
	skippedBefore := counterValue(skipped)

	p.Select("bitcoin")
	waitFor(t, "live state", func() bool { return p.View().State == PollerLive })

	mt.c <- time.Now()
	waitFor(t, "tick skipped", func() bool { return counterValue(skipped) > skippedBefore })

	view := p.View()
	if view.State != PollerLive || view.Message != "" {
		t.Errorf("view = %s %q, want live without message", view.State, view.Message)
	}
	assertPrices(t, view.Points, pts([2]float64{1000, 100}))
}

func TestPricePoller_TickFailureLeavesSeriesUnchanged(t *testing.T) {
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			return pts([2]float64{1000, 100}, [2]float64{2000, 101}), nil
		},
		tick: func(ctx context.Context, coinID string) ([]models.PricePoint, error) {
			return nil, &TransportError{Op: "market_chart", StatusCode: 429, Err: errors.New("rate limited")}
		},
	}
	p, mt := newTestPoller(f, 240)

	p.Select("bitcoin")
	waitFor(t, "live state", func() bool { return p.View().State == PollerLive })
	before := p.View()

	mt.c <- time.Now()
	waitFor(t, "tick fetch", func() bool { return f.count(models.TickRange) == 1 })
	p.Stop()

	after := p.View()
	if after.State != PollerLive {
		t.Errorf("State = %s, want live", after.State)
	}
	if after.Message != "" {
		t.Errorf("Message = %q, want none after a tick failure", after.Message)
	}
	assertPrices(t, after.Points, before.Points)
}

func TestPricePoller_LoadFailure(t *testing.T) {
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			return nil, &TransportError{Op: "market_chart", Err: errors.New("connection refused")}
		},
	}
	p, mt := newTestPoller(f, 240)

	p.Select("bitcoin")
	waitFor(t, "load failure", func() bool { return p.View().State == PollerLoadFailed })
	p.Stop()

	if n := mt.started(); n != 0 {
		t.Errorf("ticker started %d times after a failed load, want 0", n)
	}
	view := p.View()
	if view.Message != loadFailedMessage {
		t.Errorf("Message = %q, want %q", view.Message, loadFailedMessage)
	}
	if len(view.Points) != 0 {
		t.Errorf("got %d points after a failed load, want 0", len(view.Points))
	}
}

func TestPricePoller_StopPreventsFurtherChanges(t *testing.T) {
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	p, _ := newTestPoller(f, 240)

	var mu sync.Mutex
	changes := 0
	p.SetOnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	p.Select("bitcoin")
	waitFor(t, "load started", func() bool { return f.count(models.Range1D) == 1 })
	p.Stop()

	mu.Lock()
	afterStop := changes
	mu.Unlock()

	p.Select("ethereum")
	p.SetRange(models.Range7D)

	view := p.View()
	if view.CoinID != "bitcoin" || view.State != PollerLoading {
		t.Errorf("view after stop = %s/%s, want bitcoin/loading", view.CoinID, view.State)
	}
	if f.count(models.Range7D) != 0 {
		t.Error("expected no fetch after stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if changes != afterStop {
		t.Errorf("onChange fired %d times after stop", changes-afterStop)
	}
}

func TestPricePoller_WindowCapHoldsAcrossTicks(t *testing.T) {
	var mu sync.Mutex
	next := int64(4000)
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			return pts([2]float64{1000, 1}, [2]float64{2000, 2}, [2]float64{3000, 3}), nil
		},
		tick: func(ctx context.Context, coinID string) ([]models.PricePoint, error) {
			mu.Lock()
			defer mu.Unlock()
			ts := next
			next += 1000
			return []models.PricePoint{models.NewPricePoint(ts, float64(ts/1000))}, nil
		},
	}
	p, mt := newTestPoller(f, 3)
	defer p.Stop()

	p.Select("bitcoin")
	waitFor(t, "live state", func() bool { return p.View().State == PollerLive })

	for i := 0; i < 3; i++ {
		mt.c <- time.Now()
		want := int64(4000 + i*1000)
		waitFor(t, "tick append", func() bool {
			latest := p.View().Points
			return len(latest) > 0 && latest[len(latest)-1].Timestamp.UnixMilli() == want
		})
		if n := len(p.View().Points); n != 3 {
			t.Fatalf("after tick %d got %d points, want 3", i+1, n)
		}
	}

	assertPrices(t, p.View().Points, pts([2]float64{4000, 4}, [2]float64{5000, 5}, [2]float64{6000, 6}))
}

func TestPricePoller_SetRangeReloads(t *testing.T) {
	f := &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			if r == models.Range7D {
				return pts([2]float64{7000, 7}), nil
			}
			return pts([2]float64{1000, 1}), nil
		},
	}
	p, _ := newTestPoller(f, 240)
	defer p.Stop()

	p.Select("bitcoin")
	waitFor(t, "live state", func() bool { return p.View().State == PollerLive })
	gen := p.View().Generation

	p.SetRange(models.Range7D)
	waitFor(t, "7D load", func() bool {
		v := p.View()
		return v.State == PollerLive && v.Range == models.Range7D
	})

	view := p.View()
	if view.Generation <= gen {
		t.Errorf("Generation = %d, want greater than %d", view.Generation, gen)
	}
	if view.AxisUnit != "day" {
		t.Errorf("AxisUnit = %q, want day for 7D", view.AxisUnit)
	}
	assertPrices(t, view.Points, pts([2]float64{7000, 7}))
}

func TestPricePoller_IdleWithoutSelection(t *testing.T) {
	f := &fakeFetcher{}
	p, _ := newTestPoller(f, 240)
	defer p.Stop()

	if state := p.View().State; state != PollerIdle {
		t.Fatalf("initial state = %s, want idle", state)
	}

	p.Select("   ")
	if state := p.View().State; state != PollerIdle {
		t.Errorf("state after blank select = %s, want idle", state)
	}
	if len(f.calls) != 0 {
		t.Errorf("got %d fetches, want none", len(f.calls))
	}
}
