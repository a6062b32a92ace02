package services

import (
	"context"
	"testing"

	"github.com/codyseavey/crypto-tracker/internal/models"
)

func staticFetcher() *fakeFetcher {
	return &fakeFetcher{
		load: func(ctx context.Context, coinID string, r models.TimeRange) ([]models.PricePoint, error) {
			return pts([2]float64{1000, 1}), nil
		},
	}
}

func TestPollerRegistry_CreateGetDelete(t *testing.T) {
	reg, err := NewPollerRegistry(staticFetcher(), PollerConfig{}, 4)
	if err != nil {
		t.Fatalf("NewPollerRegistry failed: %v", err)
	}
	defer reg.StopAll()

	id, p := reg.Create("bitcoin", models.Range30D)
	if id == "" {
		t.Fatal("expected a session id")
	}

	got, ok := reg.Get(id)
	if !ok || got != p {
		t.Fatal("expected Get to return the created poller")
	}
	waitFor(t, "live state", func() bool { return p.View().State == PollerLive })
	if r := p.View().Range; r != models.Range30D {
		t.Errorf("Range = %v, want 30D", r)
	}

	if !reg.Delete(id) {
		t.Error("expected Delete to report an existing session")
	}
	if _, ok := reg.Get(id); ok {
		t.Error("expected session to be gone after Delete")
	}
	if reg.Delete(id) {
		t.Error("expected second Delete to report a missing session")
	}

	// the unmounted poller ignores further selections
	p.Select("ethereum")
	if p.View().CoinID != "bitcoin" {
		t.Error("expected deleted poller to be stopped")
	}
}

func TestPollerRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	reg, err := NewPollerRegistry(staticFetcher(), PollerConfig{}, 2)
	if err != nil {
		t.Fatalf("NewPollerRegistry failed: %v", err)
	}
	defer reg.StopAll()

	first, firstPoller := reg.Create("bitcoin", models.Range1D)
	second, _ := reg.Create("ethereum", models.Range1D)

	// touch first so second becomes the eviction candidate
	reg.Get(first)
	third, _ := reg.Create("solana", models.Range1D)

	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", reg.Len())
	}
	if _, ok := reg.Get(second); ok {
		t.Error("expected least recently used session to be evicted")
	}
	if _, ok := reg.Get(first); !ok {
		t.Error("expected recently used session to survive")
	}
	if _, ok := reg.Get(third); !ok {
		t.Error("expected newest session to be present")
	}

	firstPoller.Select("dogecoin")
	waitFor(t, "reselect", func() bool { return firstPoller.View().CoinID == "dogecoin" })
}
