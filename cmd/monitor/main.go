package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/analyzer"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/backfill"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/binance"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/config"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/database"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/poller"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/store"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/stream"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/monitor.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting monitor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	candles := store.New(pool, logger)

	client := binance.NewClient(
		cfg.API.RestURL,
		cfg.API.Key,
		binance.WithLogger(logger),
		binance.WithTimeout(cfg.API.Timeout),
		binance.WithRetries(cfg.API.Retries, time.Second),
		binance.WithRateLimit(cfg.API.RateLimit),
	)

	symbols := []string{cfg.Symbols.Target, cfg.Symbols.Reference}

	sync := backfill.New(backfill.Config{
		AnchorStart: cfg.Backfill.AnchorStart,
		PageSize:    cfg.Backfill.PageSize,
	}, client, candles, logger)

	// Initial backfill: catch both tables up to the present before the
	// realtime loop takes over. The two symbols are independent.
	logger.Info("starting initial backfill", "symbols", symbols, "anchor", cfg.Backfill.AnchorStart)
	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			_, err := sync.Synchronize(gctx, symbol, time.Now())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("initial backfill failed", "error", err)
		os.Exit(1)
	}
	logger.Info("initial backfill complete")

	// Seed the rolling windows from storage so evaluation can start
	// immediately instead of waiting a full window.
	an := analyzer.New(cfg.Symbols.Target, cfg.Symbols.Reference, cfg.Analyzer.WindowMinutes, cfg.Analyzer.Threshold)
	for _, symbol := range symbols {
		points, err := candles.RecentCloses(ctx, symbol, cfg.Analyzer.WindowMinutes)
		if err != nil {
			logger.Error("failed to load window history", "symbol", symbol, "error", err)
			os.Exit(1)
		}
		if err := an.Seed(symbol, points); err != nil {
			// Stored history has a hole; the incremental loop reseeds
			// once backfill closes it.
			logger.Warn("window seed incomplete", "symbol", symbol, "error", err)
		}
	}
	if !an.Ready() {
		logger.Info("windows not yet full, alerting suppressed until they are",
			"window_minutes", cfg.Analyzer.WindowMinutes)
	}

	var prices poller.PriceSource = client
	if cfg.Poller.PriceSource == "ws" {
		feed := stream.NewFeed(cfg.API.WSURL, symbols, logger)
		if err := feed.Start(ctx); err != nil {
			logger.Error("failed to start price stream", "error", err)
			os.Exit(1)
		}
		defer stopWithTimeout(feed.Stop, logger, "price stream")
		prices = feed
	}

	p := poller.New(poller.Config{
		TargetSymbol:    cfg.Symbols.Target,
		ReferenceSymbol: cfg.Symbols.Reference,
		WindowMinutes:   cfg.Analyzer.WindowMinutes,
		TickInterval:    cfg.Poller.TickInterval,
		BackfillEvery:   cfg.Poller.BackfillEvery,
		FetchTimeout:    cfg.Poller.FetchTimeout,
	}, prices, sync, candles, an, poller.NewLogEmitter(logger), logger)

	if err := p.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-p.Fatal():
		logger.Error("unrecoverable storage error", "error", err)
		if errors.Is(err, store.ErrRelationMissing) {
			logger.Error("create the missing tables before restarting",
				"target_schema", store.SchemaDDL(cfg.Symbols.Target),
				"reference_schema", store.SchemaDDL(cfg.Symbols.Reference),
			)
		}
		exitCode = 1
		cancel()
	}

	stopWithTimeout(p.Stop, logger, "poller")

	stats := p.Stats()
	logger.Info("monitor exiting",
		"ticks", stats.Ticks,
		"alerts", stats.Alerts,
		"backfills", stats.Backfills,
		"fetch_errors", stats.FetchErrors,
	)
	os.Exit(exitCode)
}

// stopWithTimeout gives a component a bounded grace period to stop.
func stopWithTimeout(stop func(context.Context) error, logger *slog.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("shutdown timed out", "component", name, "error", err)
	}
}
