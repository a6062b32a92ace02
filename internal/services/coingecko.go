package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/codyseavey/crypto-tracker/internal/metrics"
	"github.com/codyseavey/crypto-tracker/internal/models"
)

const (
	coinGeckoBaseURL        = "https://api.coingecko.com/api/v3"
	coinGeckoDefaultTimeout = 10 * time.Second
	// Public tier allows roughly 30 calls per minute
	coinGeckoDefaultPerMinute = 30
)

// MarketDataClient handles calls to the CoinGecko REST API. It performs no
// caching and no retries: each call is independent and failures go straight
// back to the caller.
type MarketDataClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// coinGeckoMarket is the wire shape of one /coins/markets row
type coinGeckoMarket struct {
	ID                       string              `json:"id"`
	Symbol                   string              `json:"symbol"`
	Name                     string              `json:"name"`
	Image                    string              `json:"image"`
	CurrentPrice             decimal.NullDecimal `json:"current_price"`
	MarketCap                decimal.NullDecimal `json:"market_cap"`
	MarketCapRank            *int                `json:"market_cap_rank"`
	TotalVolume              decimal.NullDecimal `json:"total_volume"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`
}

// coinGeckoChart is the wire shape of /coins/{id}/market_chart
type coinGeckoChart struct {
	Prices       []models.PricePoint `json:"prices"`
	MarketCaps   []models.PricePoint `json:"market_caps"`
	TotalVolumes []models.PricePoint `json:"total_volumes"`
}

// coinGeckoSearch is the wire shape of /search
type coinGeckoSearch struct {
	Coins []models.CoinSearchResult `json:"coins"`
}

// NewMarketDataClient creates a new CoinGecko client. Zero values fall back
// to the public endpoint, a 10 second timeout and 30 requests per minute.
func NewMarketDataClient(baseURL, apiKey string, timeout time.Duration, requestsPerMinute int) *MarketDataClient {
	if baseURL == "" {
		baseURL = coinGeckoBaseURL
	}
	if timeout <= 0 {
		timeout = coinGeckoDefaultTimeout
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = coinGeckoDefaultPerMinute
	}

	return &MarketDataClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute/3+1),
	}
}

// ListMarkets fetches one page of the market snapshot ordered by market cap.
// ids optionally restricts the page to the given coins.
func (c *MarketDataClient) ListMarkets(ctx context.Context, currency string, pageSize, page int, ids []string) ([]models.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("vs_currency", currency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(pageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("price_change_percentage", "24h")
	if len(ids) > 0 {
		params.Set("ids", strings.Join(ids, ","))
	}

	var rows []coinGeckoMarket
	if err := c.get(ctx, "markets", "/coins/markets", params, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, c.schemaError("markets", "expected an array of markets")
	}

	snapshots := make([]models.MarketSnapshot, 0, len(rows))
	for i, row := range rows {
		if row.ID == "" || row.Symbol == "" || row.Name == "" {
			return nil, c.schemaError("markets", fmt.Sprintf("row %d is missing id, symbol or name", i))
		}

		snapshot := models.MarketSnapshot{
			ID:                    row.ID,
			Name:                  row.Name,
			Symbol:                row.Symbol,
			Image:                 row.Image,
			CurrentPrice:          row.CurrentPrice.Decimal,
			PriceChangePercent24h: row.PriceChangePercentage24h,
			MarketCap:             row.MarketCap.Decimal,
			TotalVolume:           row.TotalVolume.Decimal,
		}
		if row.MarketCapRank != nil {
			snapshot.MarketCapRank = *row.MarketCapRank
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// FetchMarketChart fetches the price and volume history for a coin.
func (c *MarketDataClient) FetchMarketChart(ctx context.Context, coinID, currency string, r models.TimeRange) (*models.MarketChart, error) {
	return c.marketChart(ctx, coinID, currency, r, true)
}

// FetchSeries fetches only the price series for a coin.
func (c *MarketDataClient) FetchSeries(ctx context.Context, coinID, currency string, r models.TimeRange) ([]models.PricePoint, error) {
	chart, err := c.marketChart(ctx, coinID, currency, r, true)
	if err != nil {
		return nil, err
	}
	return chart.Prices, nil
}

// FetchLatest fetches the narrow live window for a coin. It never waits for
// the rate limiter: when no request slot is free it returns ErrRateLimited
// without calling upstream.
func (c *MarketDataClient) FetchLatest(ctx context.Context, coinID, currency string) ([]models.PricePoint, error) {
	chart, err := c.marketChart(ctx, coinID, currency, models.TickRange, false)
	if err != nil {
		return nil, err
	}
	return chart.Prices, nil
}

func (c *MarketDataClient) marketChart(ctx context.Context, coinID, currency string, r models.TimeRange, wait bool) (*models.MarketChart, error) {
	if coinID == "" {
		return nil, errors.New("coin id is required")
	}

	params := url.Values{}
	params.Set("vs_currency", currency)
	params.Set("days", r.Param())

	var chart coinGeckoChart
	if err := c.do(ctx, "market_chart", "/coins/"+url.PathEscape(coinID)+"/market_chart", params, &chart, wait); err != nil {
		return nil, err
	}
	if chart.Prices == nil {
		return nil, c.schemaError("market_chart", "missing prices array")
	}

	return &models.MarketChart{
		Prices:       chart.Prices,
		TotalVolumes: chart.TotalVolumes,
	}, nil
}

// SearchCoins runs the upstream free-text search. An empty query returns an
// empty result without a request.
func (c *MarketDataClient) SearchCoins(ctx context.Context, query string) ([]models.CoinSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.CoinSearchResult{}, nil
	}

	params := url.Values{}
	params.Set("query", query)

	var resp coinGeckoSearch
	if err := c.get(ctx, "search", "/search", params, &resp); err != nil {
		return nil, err
	}
	if resp.Coins == nil {
		return nil, c.schemaError("search", "missing coins array")
	}

	results := make([]models.CoinSearchResult, 0, len(resp.Coins))
	for _, coin := range resp.Coins {
		if coin.ID == "" {
			continue
		}
		results = append(results, coin)
	}
	return results, nil
}

// get performs a rate-limited GET and decodes the JSON body into out.
func (c *MarketDataClient) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	return c.do(ctx, endpoint, path, params, out, true)
}

// do performs the GET. With wait it blocks for a rate limiter slot, otherwise
// it fails fast with ErrRateLimited.
func (c *MarketDataClient) do(ctx context.Context, endpoint, path string, params url.Values, out any, wait bool) error {
	if !wait {
		if !c.limiter.Allow() {
			metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return ErrRateLimited
		}
	} else if err := c.limiter.Wait(ctx); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
		return &TransportError{Op: endpoint, Err: err}
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
		return &TransportError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "http_error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransportError{
			Op:         endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.schemaError(endpoint, err.Error())
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return nil
}

func (c *MarketDataClient) schemaError(endpoint, detail string) error {
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "schema_error").Inc()
	return &SchemaError{Endpoint: endpoint, Detail: detail}
}
