package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/crypto-tracker/internal/api/handlers"
	"github.com/codyseavey/crypto-tracker/internal/config"
	"github.com/codyseavey/crypto-tracker/internal/services"
)

// HealthChecker reports whether a shared backend is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SetupRouter wires every route. health may be nil when no shared backend is
// configured; /health then always reports ok.
func SetupRouter(cfg *config.Config, client *services.MarketDataClient, coinList *services.CoinList, registry *services.PollerRegistry, watchlist *services.WatchlistStore, users *services.UserStore, sessions *services.SessionManager, health HealthChecker) *gin.Engine {
	router := gin.Default()
	router.Use(metricsMiddleware())

	frontendPath := cfg.Server.FrontendDistPath
	serveFrontend := frontendPath != "" && dirExists(frontendPath)

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowCredentials = false // Explicitly set
	router.Use(cors.New(corsConfig))

	// Initialize handlers
	marketHandler := handlers.NewMarketHandler(coinList, client, cfg.Markets.Currency, cfg.DefaultRange())
	chartHandler := handlers.NewChartHandler(registry, cfg.DefaultRange())
	watchlistHandler := handlers.NewWatchlistHandler(watchlist)
	authHandler := handlers.NewAuthHandler(users, sessions)

	// API routes
	api := router.Group("/api")
	{
		markets := api.Group("/markets")
		{
			markets.GET("", marketHandler.GetMarkets)
			markets.GET("/search", marketHandler.SearchMarkets)
		}

		api.GET("/coins/:id/series", marketHandler.GetCoinSeries)
		api.GET("/format", marketHandler.FormatValue)

		// Chart sessions
		charts := api.Group("/charts")
		{
			charts.POST("", chartHandler.CreateChart)
			charts.GET("/:id", chartHandler.GetChart)
			charts.PUT("/:id/coin", chartHandler.SelectCoin)
			charts.PUT("/:id/range", chartHandler.SelectRange)
			charts.DELETE("/:id", chartHandler.DeleteChart)
		}

		watch := api.Group("/watchlist")
		{
			watch.GET("", watchlistHandler.GetWatchlist)
			watch.POST("/:id/toggle", watchlistHandler.ToggleWatch)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/session", authHandler.GetSession)
			auth.POST("/guest", authHandler.CreateGuest)
			auth.GET("/guest", authHandler.GetGuest)
			auth.DELETE("/guest", authHandler.ClearGuest)
			auth.POST("/validate-password", authHandler.ValidatePassword)
		}

		userRoutes := api.Group("/users")
		{
			userRoutes.GET("/:email/export", authHandler.ExportUser)
			userRoutes.POST("/import", authHandler.ImportUser)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(frontendPath, "index.html")

		// Serve static assets
		router.Static("/assets", filepath.Join(frontendPath, "assets"))

		// Serve other static files (favicon, etc.)
		router.StaticFile("/favicon.svg", filepath.Join(frontendPath, "favicon.svg"))

		// Serve root index.html
		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			path := c.Request.URL.Path

			// Don't serve index.html for API routes
			if strings.HasPrefix(path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}

			// Serve index.html for SPA routing
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
