package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/crypto-tracker/internal/models"
	"github.com/codyseavey/crypto-tracker/internal/services"
)

// ChartHandler exposes mounted price pollers as chart sessions.
type ChartHandler struct {
	registry     *services.PollerRegistry
	defaultRange models.TimeRange
}

func NewChartHandler(registry *services.PollerRegistry, defaultRange models.TimeRange) *ChartHandler {
	return &ChartHandler{
		registry:     registry,
		defaultRange: defaultRange,
	}
}

// CreateChart mounts a new chart session. Both fields are optional.
func (h *ChartHandler) CreateChart(c *gin.Context) {
	var req models.CreateChartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rng := h.defaultRange
	if req.Range != "" {
		parsed, err := models.ParseTimeRange(req.Range)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rng = parsed
	}

	id, poller := h.registry.Create(req.CoinID, rng)
	c.JSON(http.StatusCreated, gin.H{
		"id":   id,
		"view": poller.View(),
	})
}

func (h *ChartHandler) GetChart(c *gin.Context) {
	poller, ok := h.poller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, poller.View())
}

// SelectCoin switches the chart to another coin
func (h *ChartHandler) SelectCoin(c *gin.Context) {
	poller, ok := h.poller(c)
	if !ok {
		return
	}

	var req models.SelectCoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poller.Select(req.CoinID)
	c.JSON(http.StatusOK, poller.View())
}

// SelectRange switches the chart's display range
func (h *ChartHandler) SelectRange(c *gin.Context) {
	poller, ok := h.poller(c)
	if !ok {
		return
	}

	var req models.SelectRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rng, err := models.ParseTimeRange(req.Range)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poller.SetRange(rng)
	c.JSON(http.StatusOK, poller.View())
}

// DeleteChart unmounts the chart session
func (h *ChartHandler) DeleteChart(c *gin.Context) {
	if !h.registry.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "chart closed"})
}

func (h *ChartHandler) poller(c *gin.Context) (*services.PricePoller, bool) {
	poller, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return nil, false
	}
	return poller, true
}
