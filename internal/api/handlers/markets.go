package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/codyseavey/crypto-tracker/internal/models"
	"github.com/codyseavey/crypto-tracker/internal/services"
)

type MarketHandler struct {
	coinList     *services.CoinList
	client       *services.MarketDataClient
	currency     string
	defaultRange models.TimeRange
}

func NewMarketHandler(coinList *services.CoinList, client *services.MarketDataClient, currency string, defaultRange models.TimeRange) *MarketHandler {
	return &MarketHandler{
		coinList:     coinList,
		client:       client,
		currency:     currency,
		defaultRange: defaultRange,
	}
}

// GetMarkets returns the cached market snapshot, optionally sorted
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	key, err := services.ParseSortKey(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	desc := strings.EqualFold(c.DefaultQuery("order", "asc"), "desc")

	// first request before the background refresh has landed
	if h.coinList.LastRefresh().IsZero() {
		if err := h.coinList.Refresh(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
	}

	markets := services.SortSnapshots(h.coinList.Snapshots(), key, desc)
	c.JSON(http.StatusOK, gin.H{
		"markets":      markets,
		"total":        len(markets),
		"last_refresh": h.coinList.LastRefresh(),
	})
}

// SearchMarkets runs the local-then-remote coin search
func (h *MarketHandler) SearchMarkets(c *gin.Context) {
	query := c.Query("q")

	results, err := h.coinList.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   strings.TrimSpace(query),
		"markets": results,
		"total":   len(results),
	})
}

// GetCoinSeries does a one-shot price and volume fetch for a coin
func (h *MarketHandler) GetCoinSeries(c *gin.Context) {
	coinID := c.Param("id")
	if coinID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coin id is required"})
		return
	}

	rng := h.defaultRange
	if raw := c.Query("range"); raw != "" {
		parsed, err := models.ParseTimeRange(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rng = parsed
	}

	chart, err := h.client.FetchMarketChart(c.Request.Context(), coinID, h.currency, rng)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"coin_id":       coinID,
		"range":         rng,
		"label":         coinID + " price (" + strings.ToUpper(h.currency) + ")",
		"axis_unit":     rng.AxisUnit(),
		"prices":        chart.Prices,
		"total_volumes": chart.TotalVolumes,
	})
}

// FormatValue renders a number the way the dashboard displays it
func (h *MarketHandler) FormatValue(c *gin.Context) {
	value, err := decimal.NewFromString(c.Query("value"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be a number"})
		return
	}

	var formatted string
	switch kind := c.DefaultQuery("kind", "price"); kind {
	case "price":
		formatted = services.FormatPrice(value)
	case "compact":
		formatted = services.FormatCompact(value)
	case "percent":
		formatted = services.FormatPercent(decimal.NewNullDecimal(value))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be price, compact or percent"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"formatted": formatted})
}
