package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codyseavey/crypto-tracker/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*MarketDataClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMarketDataClient(srv.URL, "demo-key", 2*time.Second, 6000), srv
}

func TestMarketDataClient_ListMarkets(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		checks := map[string]string{
			"vs_currency":             "usd",
			"order":                   "market_cap_desc",
			"per_page":                "50",
			"page":                    "1",
			"price_change_percentage": "24h",
			"ids":                     "bitcoin,ethereum",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("query %s = %q, want %q", k, got, want)
			}
		}
		if got := r.Header.Get("x-cg-demo-api-key"); got != "demo-key" {
			t.Errorf("api key header = %q", got)
		}
		w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"https://img/btc.png","current_price":67123.45,"market_cap":1320000000000,"market_cap_rank":1,"total_volume":25000000000,"price_change_percentage_24h":-1.25},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","image":"","current_price":3500.1,"market_cap":null,"market_cap_rank":null,"total_volume":null,"price_change_percentage_24h":null}
		]`))
	})

	got, err := client.ListMarkets(context.Background(), "usd", 50, 1, []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("ListMarkets failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d markets, want 2", len(got))
	}
	if got[0].CurrentPrice.String() != "67123.45" || got[0].MarketCapRank != 1 {
		t.Errorf("bitcoin = %+v", got[0])
	}
	if !got[0].PriceChangePercent24h.Valid || got[0].PriceChangePercent24h.Decimal.String() != "-1.25" {
		t.Errorf("bitcoin change = %+v", got[0].PriceChangePercent24h)
	}
	if got[1].PriceChangePercent24h.Valid {
		t.Error("expected null 24h change to stay null")
	}
	if got[1].MarketCapRank != 0 {
		t.Errorf("null rank = %d, want 0", got[1].MarketCapRank)
	}
}

func TestMarketDataClient_FetchMarketChart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("days"); got != "max" {
			t.Errorf("days = %q, want max", got)
		}
		w.Write([]byte(`{"prices":[[1000,100],[2000,101.5]],"market_caps":[],"total_volumes":[[1000,5e9],[2000,6e9]]}`))
	})

	chart, err := client.FetchMarketChart(context.Background(), "bitcoin", "usd", models.RangeMax)
	if err != nil {
		t.Fatalf("FetchMarketChart failed: %v", err)
	}
	if len(chart.Prices) != 2 || chart.Prices[1].Price.String() != "101.5" {
		t.Errorf("prices = %v", chart.Prices)
	}
	if chart.Prices[0].Timestamp.UnixMilli() != 1000 {
		t.Errorf("first timestamp = %d", chart.Prices[0].Timestamp.UnixMilli())
	}
	if len(chart.TotalVolumes) != 2 {
		t.Errorf("volumes = %v", chart.TotalVolumes)
	}
}

func TestMarketDataClient_TickUsesNarrowRange(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("days"); got != "0.02" {
			t.Errorf("days = %q, want 0.02", got)
		}
		w.Write([]byte(`{"prices":[[3000,102]]}`))
	})

	points, err := client.FetchLatest(context.Background(), "bitcoin", "usd")
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(points) != 1 {
		t.Errorf("got %d points, want 1", len(points))
	}
}

func TestMarketDataClient_FetchLatestNeverWaitsForLimiter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"prices":[[3000,102]]}`))
	}))
	t.Cleanup(srv.Close)
	// one request per minute with a burst of one
	client := NewMarketDataClient(srv.URL, "", time.Second, 1)

	if _, err := client.FetchSeries(context.Background(), "bitcoin", "usd", models.Range1D); err != nil {
		t.Fatalf("FetchSeries failed: %v", err)
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := client.FetchLatest(context.Background(), "bitcoin", "usd"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("FetchLatest %d error = %v, want ErrRateLimited", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("FetchLatest blocked for %v", elapsed)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}
}

func TestMarketDataClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"status":{"error_code":429}}`, "transport"},
		{"server error", http.StatusInternalServerError, `oops`, "transport"},
		{"missing prices", http.StatusOK, `{"total_volumes":[]}`, "schema"},
		{"not json", http.StatusOK, `<html>`, "schema"},
		{"bad pair", http.StatusOK, `{"prices":[[1000]]}`, "schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.FetchSeries(context.Background(), "bitcoin", "usd", models.Range1D)
			var te *TransportError
			var se *SchemaError
			switch tt.wantType {
			case "transport":
				if !errors.As(err, &te) {
					t.Fatalf("error = %v, want TransportError", err)
				}
				if te.StatusCode != tt.status {
					t.Errorf("StatusCode = %d, want %d", te.StatusCode, tt.status)
				}
			case "schema":
				if !errors.As(err, &se) {
					t.Fatalf("error = %v, want SchemaError", err)
				}
			}
		})
	}
}

func TestMarketDataClient_NetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewMarketDataClient(srv.URL, "", time.Second, 6000)

	_, err := client.ListMarkets(context.Background(), "usd", 10, 1, nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if te.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for a network failure", te.StatusCode)
	}
}

func TestMarketDataClient_SearchCoins(t *testing.T) {
	var requests int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if got := r.URL.Query().Get("query"); got != "doge" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(`{"coins":[{"id":"dogecoin","name":"Dogecoin","symbol":"DOGE","market_cap_rank":9},{"id":"","name":"broken"}],"exchanges":[]}`))
	})

	empty, err := client.SearchCoins(context.Background(), "   ")
	if err != nil || len(empty) != 0 {
		t.Errorf("empty query = %v, %v", empty, err)
	}
	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("empty query made %d requests", n)
	}

	got, err := client.SearchCoins(context.Background(), "doge")
	if err != nil {
		t.Fatalf("SearchCoins failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "dogecoin" || got[0].Symbol != "DOGE" {
		t.Errorf("results = %+v", got)
	}
}
