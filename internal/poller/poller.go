package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/analyzer"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/store"
)

// PriceSource provides the current trade price for a symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// Backfiller advances a symbol's candle table to the given end time and
// returns the newest persisted candle, if any.
type Backfiller interface {
	Synchronize(ctx context.Context, symbol string, end time.Time) (*model.Candle, error)
}

// HistorySource reloads recent closes from storage, used to reseed a
// window after a gap.
type HistorySource interface {
	RecentCloses(ctx context.Context, symbol string, n int) ([]model.ClosePoint, error)
}

// Config holds poller configuration.
type Config struct {
	TargetSymbol    string
	ReferenceSymbol string
	WindowMinutes   int
	TickInterval    time.Duration // Cadence of live evaluation (default: 1s)
	BackfillEvery   time.Duration // Cadence of incremental backfill (default: 60s)
	FetchTimeout    time.Duration // Per-fetch timeout (default: 5s)
}

// Stats are cumulative realtime-loop counters.
type Stats struct {
	Ticks       int64
	FetchErrors int64
	Evaluations int64
	Alerts      int64
	Backfills   int64
	Reseeds     int64
}

// Poller is the steady-state loop layering live prices on top of the
// stored candle series.
type Poller struct {
	cfg      Config
	prices   PriceSource
	backfill Backfiller
	history  HistorySource
	analyzer *analyzer.Analyzer
	emitter  AlertEmitter
	logger   *slog.Logger

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fatal  chan error

	lastBackfill time.Time

	mu    sync.Mutex
	stats Stats
}

// New creates a Poller.
func New(cfg Config, prices PriceSource, backfill Backfiller, history HistorySource,
	an *analyzer.Analyzer, emitter AlertEmitter, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:      cfg,
		prices:   prices,
		backfill: backfill,
		history:  history,
		analyzer: an,
		emitter:  emitter,
		logger:   logger,
		now:      time.Now,
		fatal:    make(chan error, 1),
	}
}

// Start begins the realtime loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.lastBackfill = p.now()

	p.wg.Add(1)
	go p.run()

	p.logger.Info("realtime poller started",
		"target", p.cfg.TargetSymbol,
		"reference", p.cfg.ReferenceSymbol,
		"tick_interval", p.cfg.TickInterval,
		"backfill_every", p.cfg.BackfillEvery,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("realtime poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fatal delivers the unrecoverable error, if one occurs. The owning
// binary should treat a receive as an order to exit.
func (p *Poller) Fatal() <-chan error {
	return p.fatal
}

// Stats returns cumulative counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// run is the main loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	// Tick immediately on start.
	p.tick()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick runs one cycle: fetch both prices, evaluate, maybe backfill.
// Every error except a missing table is contained to this tick.
func (p *Poller) tick() {
	p.count(func(s *Stats) { s.Ticks++ })

	target, reference, err := p.fetchPrices()
	if err != nil {
		p.count(func(s *Stats) { s.FetchErrors++ })
		p.logger.Warn("price fetch failed", "err", err)
	} else {
		p.evaluate(target, reference)
	}

	if p.now().Sub(p.lastBackfill) >= p.cfg.BackfillEvery {
		p.lastBackfill = p.now()
		p.incrementalBackfill()
	}
}

// fetchPrices requests both live prices concurrently and waits for
// both: a join barrier, bounded by the per-fetch timeout.
func (p *Poller) fetchPrices() (target, reference float64, err error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.FetchTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		target, err = p.prices.Price(ctx, p.cfg.TargetSymbol)
		return err
	})
	g.Go(func() error {
		var err error
		reference, err = p.prices.Price(ctx, p.cfg.ReferenceSymbol)
		return err
	})

	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return target, reference, nil
}

func (p *Poller) evaluate(target, reference float64) {
	sig, err := p.analyzer.Evaluate(target, reference)
	if err != nil {
		if errors.Is(err, analyzer.ErrInsufficientHistory) {
			p.logger.Debug("evaluation suppressed", "reason", err)
			return
		}
		p.logger.Warn("evaluation failed", "err", err)
		return
	}

	p.count(func(s *Stats) { s.Evaluations++ })
	p.logger.Info("tick",
		"target_price", target,
		"reference_price", reference,
		"target_return", sig.TargetReturn,
		"reference_return", sig.ReferenceReturn,
		"residual", sig.Residual,
	)

	if sig.Exceeded {
		p.count(func(s *Stats) { s.Alerts++ })
		p.emitter.Emit(model.NewAlert(p.cfg.TargetSymbol, sig.Residual, p.cfg.WindowMinutes, p.now()))
	}
}

// incrementalBackfill persists the newly closed candle for each symbol
// and slides the corresponding window.
func (p *Poller) incrementalBackfill() {
	now := p.now()

	for _, symbol := range []string{p.cfg.TargetSymbol, p.cfg.ReferenceSymbol} {
		newest, err := p.backfill.Synchronize(p.ctx, symbol, now)
		if err != nil {
			if errors.Is(err, store.ErrRelationMissing) {
				p.report(err)
				return
			}
			// Watermark unchanged; next cycle retries the same range.
			p.logger.Warn("incremental backfill failed", "symbol", symbol, "err", err)
			continue
		}
		if newest == nil {
			continue
		}

		p.count(func(s *Stats) { s.Backfills++ })

		err = p.analyzer.Observe(symbol, model.ClosePoint{OpenTime: newest.OpenTime, Close: newest.Close})
		if errors.Is(err, analyzer.ErrWindowGap) {
			p.logger.Warn("window gap, reseeding from storage", "symbol", symbol, "err", err)
			p.reseed(symbol)
		} else if err != nil {
			p.logger.Warn("observe failed", "symbol", symbol, "err", err)
		}
	}
}

// reseed rebuilds a window from storage after a gap invalidated it.
func (p *Poller) reseed(symbol string) {
	points, err := p.history.RecentCloses(p.ctx, symbol, p.cfg.WindowMinutes)
	if err != nil {
		if errors.Is(err, store.ErrRelationMissing) {
			p.report(err)
			return
		}
		p.logger.Warn("reseed failed", "symbol", symbol, "err", err)
		return
	}
	if err := p.analyzer.Seed(symbol, points); err != nil {
		// Storage itself has a hole; the next backfill cycle closes it
		// and the window stays invalid until then.
		p.logger.Warn("reseed found non-contiguous history", "symbol", symbol, "err", err)
	} else {
		p.count(func(s *Stats) { s.Reseeds++ })
	}
}

func (p *Poller) report(err error) {
	select {
	case p.fatal <- err:
	default:
	}
	p.cancel()
}

func (p *Poller) count(f func(*Stats)) {
	p.mu.Lock()
	f(&p.stats)
	p.mu.Unlock()
}
