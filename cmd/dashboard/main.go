// dashboard is a terminal UI for the crypto tracker: a searchable market
// table with watchlist stars and a live price chart for the selected coin.
//
// Usage: dashboard [-config=<path>] [-coin=<id>]
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/codyseavey/crypto-tracker/internal/config"
	"github.com/codyseavey/crypto-tracker/internal/database"
	"github.com/codyseavey/crypto-tracker/internal/services"
	"github.com/codyseavey/crypto-tracker/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file (optional)")
	coinID := flag.String("coin", "", "Coin to chart on startup (e.g. bitcoin)")
	logPath := flag.String("log", "", "Write logs to this file instead of discarding them")
	flag.Parse()

	// The terminal belongs to the UI
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.Store = storage.NewSQLiteStore(database.GetDB())
	if cfg.Storage.Backend == config.StorageRedis {
		redisStore, err := storage.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			log.Fatalf("Failed to initialize redis store: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
	}

	client := services.NewMarketDataClient(cfg.CoinGecko.BaseURL, cfg.CoinGecko.APIKey, cfg.CoinGeckoTimeout(), cfg.CoinGecko.RequestsPerMinute)
	coinList := services.NewCoinList(client, services.CoinListConfig{
		Currency: cfg.Markets.Currency,
		PageSize: cfg.Markets.PageSize,
	})
	watchlist := services.NewWatchlistStore(store)
	poller := services.NewPricePoller(client, services.PollerConfig{
		Currency:     cfg.Markets.Currency,
		PollInterval: cfg.PollInterval(),
		WindowCap:    cfg.Chart.WindowCap,
		Range:        cfg.DefaultRange(),
	})
	defer poller.Stop()

	var program *tea.Program
	debouncer := services.NewDebouncer(cfg.DebounceDelay(), func(q string) {
		program.Send(searchCommittedMsg(q))
	})
	defer debouncer.Stop()

	m := newDashboardModel(ctx, coinList, watchlist, poller, debouncer, cfg.MarketRefreshInterval())
	m.initialCoin = *coinID
	program = tea.NewProgram(m, tea.WithAltScreen())
	// Select and SetRange fire the callback from inside Update, so the send
	// must not block the event loop
	poller.SetOnChange(func() {
		go program.Send(chartChangedMsg{})
	})

	if _, err := program.Run(); err != nil {
		log.Fatalf("Dashboard failed: %v", err)
	}
}
