package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/store"
)

// ErrSyncFailed marks an abandoned synchronization cycle. The watermark
// is unchanged, so the next invocation retries the same range.
var ErrSyncFailed = errors.New("synchronization abandoned")

// PageFetcher retrieves one ascending page of candles for a symbol.
type PageFetcher interface {
	Klines(ctx context.Context, symbol string, start time.Time, limit int) ([]model.Candle, error)
}

// CandleStore is the storage capability the synchronizer needs.
type CandleStore interface {
	UpsertBatch(ctx context.Context, symbol string, candles []model.Candle) (inserted, conflicts int, err error)
	Latest(ctx context.Context, symbol string) (*model.Candle, error)
}

// Config holds synchronizer settings.
type Config struct {
	// AnchorStart is where backfill begins when the table is empty.
	AnchorStart time.Time
	// PageSize is the number of candles per fetch page, max 1000.
	PageSize int
}

// Stats are cumulative synchronization counters.
type Stats struct {
	Cycles       int64 // Completed Synchronize calls
	Pages        int64 // Pages fetched and persisted
	RowsInserted int64 // New rows written
	Conflicts    int64 // Rows already present (idempotent re-writes)
	RowsDropped  int64 // Trailing candles excluded as not yet closed
	Failures     int64 // Abandoned cycles
}

// Synchronizer advances a per-symbol watermark from its last persisted
// position to a target end time.
type Synchronizer struct {
	cfg     Config
	fetcher PageFetcher
	store   CandleStore
	logger  *slog.Logger

	now func() time.Time

	mu    sync.Mutex
	stats Stats
}

// New creates a Synchronizer.
func New(cfg Config, fetcher PageFetcher, store CandleStore, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Synchronize catches symbol's table up to end and returns the most
// recently persisted candle, or nil when no closed candle was written.
//
// Transient fetch and storage failures abandon the cycle with
// ErrSyncFailed; the watermark stays where the last committed page left
// it, so the caller's next invocation resumes cleanly. A missing
// backing table propagates unchanged and must terminate the process.
func (s *Synchronizer) Synchronize(ctx context.Context, symbol string, end time.Time) (*model.Candle, error) {
	start, err := s.watermark(ctx, symbol)
	if err != nil {
		if errors.Is(err, store.ErrRelationMissing) {
			return nil, err
		}
		return nil, s.abandon(symbol, time.Time{}, err)
	}

	step := time.Duration(s.cfg.PageSize) * model.Interval
	pager := NewPager(start, end, step)

	cycleStart := s.now()
	var newest *model.Candle
	var pages, inserted, conflicts, dropped int

	for {
		ts, ok := pager.Next()
		if !ok {
			break
		}

		page, err := s.fetcher.Klines(ctx, symbol, ts, s.cfg.PageSize)
		if err != nil {
			return nil, s.abandon(symbol, ts, err)
		}

		// Trailing-candle rule: the newest bucket may still be open;
		// its close/high/low/volume are mutable upstream until the
		// bucket elapses, so it must not be persisted yet.
		now := s.now()
		for len(page) > 0 && !page[len(page)-1].Closed(now) {
			page = page[:len(page)-1]
			dropped++
		}
		if len(page) == 0 {
			continue
		}

		ins, conf, err := s.store.UpsertBatch(ctx, symbol, page)
		if err != nil {
			if errors.Is(err, store.ErrRelationMissing) {
				return nil, err
			}
			return nil, s.abandon(symbol, ts, err)
		}

		last := page[len(page)-1]
		newest = &last
		pages++
		inserted += ins
		conflicts += conf
	}

	s.mu.Lock()
	s.stats.Cycles++
	s.stats.Pages += int64(pages)
	s.stats.RowsInserted += int64(inserted)
	s.stats.Conflicts += int64(conflicts)
	s.stats.RowsDropped += int64(dropped)
	s.mu.Unlock()

	s.logger.Info("synchronization complete",
		"symbol", symbol,
		"from", start,
		"to", end,
		"pages", pages,
		"inserted", inserted,
		"conflicts", conflicts,
		"dropped", dropped,
		"duration", s.now().Sub(cycleStart),
	)

	return newest, nil
}

// watermark derives the resume point for symbol: one interval past the
// newest persisted candle, or the anchor date on an empty table.
func (s *Synchronizer) watermark(ctx context.Context, symbol string) (time.Time, error) {
	latest, err := s.store.Latest(ctx, symbol)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return s.cfg.AnchorStart, nil
	}
	return latest.OpenTime.Add(model.Interval), nil
}

// Stats returns cumulative counters.
func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Synchronizer) abandon(symbol string, page time.Time, cause error) error {
	s.mu.Lock()
	s.stats.Failures++
	s.mu.Unlock()

	s.logger.Warn("synchronization cycle abandoned",
		"symbol", symbol,
		"page", page,
		"err", cause,
	)
	return fmt.Errorf("%w: %s page %v: %w", ErrSyncFailed, symbol, page, cause)
}
