package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/backfill"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/binance"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/config"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/database"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/store"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/version"
)

// One-shot historical catch-up: brings both candle tables up to now and
// exits. Useful for rebuilding a store without running the monitor.
func main() {
	configPath := flag.String("config", "configs/monitor.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting backfill", "version", version.Version, "config", *configPath)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	client := binance.NewClient(
		cfg.API.RestURL,
		cfg.API.Key,
		binance.WithLogger(logger),
		binance.WithTimeout(cfg.API.Timeout),
		binance.WithRetries(cfg.API.Retries, time.Second),
		binance.WithRateLimit(cfg.API.RateLimit),
	)

	sync := backfill.New(backfill.Config{
		AnchorStart: cfg.Backfill.AnchorStart,
		PageSize:    cfg.Backfill.PageSize,
	}, client, store.New(pool, logger), logger)

	for _, symbol := range []string{cfg.Symbols.Target, cfg.Symbols.Reference} {
		if _, err := sync.Synchronize(ctx, symbol, time.Now()); err != nil {
			logger.Error("backfill failed", "symbol", symbol, "error", err)
			if errors.Is(err, store.ErrRelationMissing) {
				logger.Error("create the missing table before retrying",
					"schema", store.SchemaDDL(symbol))
			}
			os.Exit(1)
		}
	}

	stats := sync.Stats()
	logger.Info("backfill complete",
		"pages", stats.Pages,
		"inserted", stats.RowsInserted,
		"conflicts", stats.Conflicts,
		"dropped", stats.RowsDropped,
	)
}
