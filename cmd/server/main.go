package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codyseavey/crypto-tracker/internal/api"
	"github.com/codyseavey/crypto-tracker/internal/config"
	"github.com/codyseavey/crypto-tracker/internal/database"
	"github.com/codyseavey/crypto-tracker/internal/services"
	"github.com/codyseavey/crypto-tracker/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable tier: sqlite by default, redis when several processes share state
	var durable storage.Store = storage.NewSQLiteStore(database.GetDB())
	var health api.HealthChecker
	if cfg.Storage.Backend == config.StorageRedis {
		redisStore, err := storage.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			log.Fatalf("Failed to initialize redis store: %v", err)
		}
		defer redisStore.Close()
		durable = redisStore
		health = redisStore
		log.Printf("Using redis store at %s", cfg.Redis.Addr)
	}
	ephemeral := storage.NewMemoryStore()

	// Initialize services
	client := services.NewMarketDataClient(cfg.CoinGecko.BaseURL, cfg.CoinGecko.APIKey, cfg.CoinGeckoTimeout(), cfg.CoinGecko.RequestsPerMinute)

	coinList := services.NewCoinList(client, services.CoinListConfig{
		Currency:        cfg.Markets.Currency,
		PageSize:        cfg.Markets.PageSize,
		RefreshInterval: cfg.MarketRefreshInterval(),
	})

	registry, err := services.NewPollerRegistry(client, services.PollerConfig{
		Currency:     cfg.Markets.Currency,
		PollInterval: cfg.PollInterval(),
		WindowCap:    cfg.Chart.WindowCap,
		Range:        cfg.DefaultRange(),
	}, cfg.Chart.MaxSessions)
	if err != nil {
		log.Fatalf("Failed to initialize chart registry: %v", err)
	}

	watchlist := services.NewWatchlistStore(durable)
	log.Printf("Loaded watchlist with %d coins", len(watchlist.Load(ctx)))

	users := services.NewUserStore(durable)
	sessions := services.NewSessionManager(users, durable, ephemeral)

	// Start market refresh in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in coin list refresh: %v - restarting in 30 seconds", r)
					}
				}()
				coinList.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Coin list restarting after panic recovery...")
			}
		}
	}()

	// Setup router
	router := api.SetupRouter(cfg, client, coinList, registry, watchlist, users, sessions, health)

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the market refresh
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Unmount every chart session
	registry.StopAll()

	log.Println("Server exited")
}
