package backfill

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/binance"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
	"github.com/RomanchenkoAS/ethusdt-monitor/internal/store"
)

var anchor = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

// fakeExchange serves synthetic 1-minute candles up to (and including)
// the bucket opening at lastOpen.
type fakeExchange struct {
	lastOpen time.Time
	calls    int
	err      error
}

func (f *fakeExchange) Klines(ctx context.Context, symbol string, start time.Time, limit int) ([]model.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	var page []model.Candle
	for ts := start; len(page) < limit && !ts.After(f.lastOpen); ts = ts.Add(time.Minute) {
		page = append(page, model.Candle{
			Symbol:    symbol,
			OpenTime:  ts,
			CloseTime: ts.Add(time.Minute - time.Millisecond),
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100.5,
			Volume:    10,
		})
	}
	return page, nil
}

// memStore is an in-memory CandleStore keyed by open time.
type memStore struct {
	rows      map[time.Time]model.Candle
	latestErr error
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[time.Time]model.Candle)}
}

func (m *memStore) UpsertBatch(ctx context.Context, symbol string, candles []model.Candle) (int, int, error) {
	if m.upsertErr != nil {
		return 0, 0, m.upsertErr
	}
	var inserted, conflicts int
	for _, c := range candles {
		if _, ok := m.rows[c.OpenTime]; ok {
			conflicts++
			continue
		}
		m.rows[c.OpenTime] = c
		inserted++
	}
	return inserted, conflicts, nil
}

func (m *memStore) Latest(ctx context.Context, symbol string) (*model.Candle, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	var latest *model.Candle
	for _, c := range m.rows {
		c := c
		if latest == nil || c.OpenTime.After(latest.OpenTime) {
			latest = &c
		}
	}
	return latest, nil
}

func (m *memStore) openTimes() []time.Time {
	var ts []time.Time
	for k := range m.rows {
		ts = append(ts, k)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	return ts
}

func newTestSynchronizer(ex *fakeExchange, st *memStore, now time.Time) *Synchronizer {
	s := New(Config{AnchorStart: anchor, PageSize: 1000}, ex, st, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestSynchronizeEmptyStore(t *testing.T) {
	now := anchor.Add(2500 * time.Minute)
	ex := &fakeExchange{lastOpen: now.Add(-time.Minute)}
	st := newMemStore()
	s := newTestSynchronizer(ex, st, now)

	newest, err := s.Synchronize(context.Background(), "ETHUSDT", now)
	if err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}

	if ex.calls != 3 {
		t.Errorf("fetch pages = %d, want 3", ex.calls)
	}
	if len(st.rows) != 2500 {
		t.Errorf("persisted rows = %d, want 2500", len(st.rows))
	}

	wantNewest := now.Add(-time.Minute)
	if newest == nil || !newest.OpenTime.Equal(wantNewest) {
		t.Errorf("newest = %+v, want open time %v", newest, wantNewest)
	}

	latest, _ := st.Latest(context.Background(), "ETHUSDT")
	if !latest.OpenTime.Equal(wantNewest) {
		t.Errorf("watermark open time = %v, want %v", latest.OpenTime, wantNewest)
	}
}

func TestSynchronizeIdempotent(t *testing.T) {
	now := anchor.Add(2500 * time.Minute)
	ex := &fakeExchange{lastOpen: now.Add(-time.Minute)}
	st := newMemStore()
	s := newTestSynchronizer(ex, st, now)

	if _, err := s.Synchronize(context.Background(), "ETHUSDT", now); err != nil {
		t.Fatalf("first Synchronize: %v", err)
	}
	first := st.openTimes()

	if _, err := s.Synchronize(context.Background(), "ETHUSDT", now); err != nil {
		t.Fatalf("second Synchronize: %v", err)
	}
	second := st.openTimes()

	if len(first) != len(second) {
		t.Fatalf("row count changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("row set changed at %d: %v -> %v", i, first[i], second[i])
		}
	}

	stats := s.Stats()
	if stats.Cycles != 2 {
		t.Errorf("Cycles = %d, want 2", stats.Cycles)
	}
}

func TestSynchronizeWatermarkMonotonic(t *testing.T) {
	now := anchor.Add(120 * time.Minute)
	ex := &fakeExchange{lastOpen: now.Add(-time.Minute)}
	st := newMemStore()
	s := newTestSynchronizer(ex, st, now)

	if _, err := s.Synchronize(context.Background(), "ETHUSDT", now); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	before, _ := st.Latest(context.Background(), "ETHUSDT")

	// A call with an earlier end time must not move anything backwards.
	if _, err := s.Synchronize(context.Background(), "ETHUSDT", anchor.Add(30*time.Minute)); err != nil {
		t.Fatalf("Synchronize with earlier end: %v", err)
	}
	after, _ := st.Latest(context.Background(), "ETHUSDT")

	if after.OpenTime.Before(before.OpenTime) {
		t.Errorf("watermark decreased: %v -> %v", before.OpenTime, after.OpenTime)
	}
}

func TestSynchronizeTrailingCandleExcluded(t *testing.T) {
	// The exchange reports a bucket that opened 30 seconds ago; its
	// close time has not elapsed, so it must not be persisted. The
	// bucket that opened 90 seconds ago is already closed and stays.
	now := anchor.Add(2*time.Minute + 30*time.Second)
	ex := &fakeExchange{lastOpen: anchor.Add(2 * time.Minute)} // opened now-30s
	st := newMemStore()
	s := newTestSynchronizer(ex, st, now)

	newest, err := s.Synchronize(context.Background(), "ETHUSDT", now)
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	if len(st.rows) != 2 {
		t.Fatalf("persisted rows = %d, want 2", len(st.rows))
	}
	if _, ok := st.rows[anchor.Add(2*time.Minute)]; ok {
		t.Error("still-open trailing candle was persisted")
	}
	wantNewest := anchor.Add(time.Minute) // opened now-90s
	if newest == nil || !newest.OpenTime.Equal(wantNewest) {
		t.Errorf("newest = %+v, want open time %v", newest, wantNewest)
	}

	if got := s.Stats().RowsDropped; got != 1 {
		t.Errorf("RowsDropped = %d, want 1", got)
	}
}

func TestSynchronizeIncremental(t *testing.T) {
	now := anchor.Add(61 * time.Minute)
	ex := &fakeExchange{lastOpen: now.Add(-time.Minute)}
	st := newMemStore()
	s := newTestSynchronizer(ex, st, now)

	if _, err := s.Synchronize(context.Background(), "ETHUSDT", now); err != nil {
		t.Fatalf("initial Synchronize: %v", err)
	}

	// One minute later a new candle has closed.
	now = now.Add(time.Minute)
	ex.lastOpen = now.Add(-time.Minute)
	s.now = func() time.Time { return now }

	newest, err := s.Synchronize(context.Background(), "ETHUSDT", now)
	if err != nil {
		t.Fatalf("incremental Synchronize: %v", err)
	}
	if newest == nil || !newest.OpenTime.Equal(now.Add(-time.Minute)) {
		t.Errorf("newest = %+v, want open time %v", newest, now.Add(-time.Minute))
	}
	if len(st.rows) != 62 {
		t.Errorf("persisted rows = %d, want 62", len(st.rows))
	}
}

func TestSynchronizeTransientEscalates(t *testing.T) {
	now := anchor.Add(10 * time.Minute)
	ex := &fakeExchange{
		lastOpen: now.Add(-time.Minute),
		err:      fmt.Errorf("max retries exceeded: %w", binance.ErrTransient),
	}
	st := newMemStore()
	s := newTestSynchronizer(ex, st, now)

	_, err := s.Synchronize(context.Background(), "ETHUSDT", now)
	if !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("error = %v, want ErrSyncFailed", err)
	}
	if !errors.Is(err, binance.ErrTransient) {
		t.Errorf("cause lost: %v", err)
	}
	if len(st.rows) != 0 {
		t.Errorf("rows persisted despite failed cycle: %d", len(st.rows))
	}
	if got := s.Stats().Failures; got != 1 {
		t.Errorf("Failures = %d, want 1", got)
	}
}

func TestSynchronizeMalformedAbortsCycle(t *testing.T) {
	now := anchor.Add(10 * time.Minute)
	ex := &fakeExchange{
		lastOpen: now.Add(-time.Minute),
		err:      fmt.Errorf("kline 3: %w", binance.ErrMalformedResponse),
	}
	st := newMemStore()
	s := newTestSynchronizer(ex, st, now)

	_, err := s.Synchronize(context.Background(), "ETHUSDT", now)
	if !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("error = %v, want ErrSyncFailed", err)
	}
}

func TestSynchronizeRelationMissingIsFatal(t *testing.T) {
	now := anchor.Add(10 * time.Minute)
	ex := &fakeExchange{lastOpen: now.Add(-time.Minute)}
	st := newMemStore()
	st.latestErr = fmt.Errorf("latest ethusdt: %w", store.ErrRelationMissing)
	s := newTestSynchronizer(ex, st, now)

	_, err := s.Synchronize(context.Background(), "ETHUSDT", now)
	if !errors.Is(err, store.ErrRelationMissing) {
		t.Fatalf("error = %v, want ErrRelationMissing", err)
	}
	if errors.Is(err, ErrSyncFailed) {
		t.Error("fatal error downgraded to an abandoned cycle")
	}
}

func TestSynchronizeStorageUnavailableAbandons(t *testing.T) {
	now := anchor.Add(10 * time.Minute)
	ex := &fakeExchange{lastOpen: now.Add(-time.Minute)}
	st := newMemStore()
	st.upsertErr = fmt.Errorf("commit ethusdt: %w", store.ErrUnavailable)
	s := newTestSynchronizer(ex, st, now)

	_, err := s.Synchronize(context.Background(), "ETHUSDT", now)
	if !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("error = %v, want ErrSyncFailed", err)
	}
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("cause lost: %v", err)
	}
}
