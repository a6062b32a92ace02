package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/crypto-tracker/internal/services"
)

type WatchlistHandler struct {
	watchlist *services.WatchlistStore
}

func NewWatchlistHandler(watchlist *services.WatchlistStore) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist}
}

func (h *WatchlistHandler) GetWatchlist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"watchlist": h.watchlist.List(c.Request.Context())})
}

// ToggleWatch stars or unstars a coin
func (h *WatchlistHandler) ToggleWatch(c *gin.Context) {
	coinID := strings.TrimSpace(c.Param("id"))
	if coinID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coin id is required"})
		return
	}

	watched, ids := h.watchlist.Toggle(c.Request.Context(), coinID)
	c.JSON(http.StatusOK, gin.H{
		"coin_id":   coinID,
		"watched":   watched,
		"watchlist": ids,
	})
}
