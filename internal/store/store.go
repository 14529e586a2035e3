package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
)

// ErrRelationMissing marks a query against a table that does not exist.
// Unrecoverable: the operator has to create the schema first.
var ErrRelationMissing = errors.New("relation does not exist")

// ErrUnavailable marks a connection or transaction failure. The failed
// batch left no partial state, so the next cycle retries cleanly.
var ErrUnavailable = errors.New("storage unavailable")

// undefinedTable is the PostgreSQL error code for a missing relation.
const undefinedTable = "42P01"

// Store persists candles, one PostgreSQL table per symbol.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store on top of an existing connection pool.
func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// SchemaDDL returns the DDL the monitor expects for a symbol's table,
// for use in the ErrRelationMissing diagnostic.
func SchemaDDL(symbol string) string {
	table := model.TableName(symbol)
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    opentime  timestamp without time zone NOT NULL,
    open      double precision,
    high      double precision,
    low       double precision,
    close     double precision,
    volume    double precision,
    closetime timestamp without time zone,
    CONSTRAINT %s_pkey PRIMARY KEY (opentime)
);`, table, table)
}

// UpsertBatch writes one page of candles for symbol in a single
// transaction. Rows whose open time is already present are left
// untouched. Returns how many rows were inserted and how many
// conflicted with existing rows.
func (s *Store) UpsertBatch(ctx context.Context, symbol string, candles []model.Candle) (inserted, conflicts int, err error) {
	if len(candles) == 0 {
		return 0, 0, nil
	}

	table := model.TableName(symbol)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, 0, s.classify("begin", symbol, err)
	}
	defer tx.Rollback(ctx)

	// Table names cannot be bound parameters; symbols are validated as
	// identifiers at config load.
	sql := fmt.Sprintf(`
		INSERT INTO %s (opentime, open, high, low, close, volume, closetime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (opentime) DO NOTHING
	`, table)

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(sql, c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.CloseTime)
	}

	results := tx.SendBatch(ctx, batch)
	for range candles {
		ct, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, 0, s.classify("insert", symbol, err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	if err := results.Close(); err != nil {
		return 0, 0, s.classify("close batch", symbol, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, s.classify("commit", symbol, err)
	}

	return len(candles) - conflicts, conflicts, nil
}

// Latest returns the most recently persisted candle for symbol, or nil
// if the table is empty.
func (s *Store) Latest(ctx context.Context, symbol string) (*model.Candle, error) {
	table := model.TableName(symbol)

	sql := fmt.Sprintf(`
		SELECT opentime, open, high, low, close, volume, closetime
		FROM %s
		ORDER BY opentime DESC
		LIMIT 1
	`, table)

	var c model.Candle
	c.Symbol = symbol
	err := s.db.QueryRow(ctx, sql).Scan(
		&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.CloseTime,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.classify("latest", symbol, err)
	}

	c.OpenTime = c.OpenTime.UTC()
	c.CloseTime = c.CloseTime.UTC()
	return &c, nil
}

// RecentCloses returns the last n (open time, close price) pairs for
// symbol in ascending order, for seeding the rolling window.
func (s *Store) RecentCloses(ctx context.Context, symbol string, n int) ([]model.ClosePoint, error) {
	table := model.TableName(symbol)

	sql := fmt.Sprintf(`
		SELECT opentime, close
		FROM %s
		ORDER BY opentime DESC
		LIMIT $1
	`, table)

	rows, err := s.db.Query(ctx, sql, n)
	if err != nil {
		return nil, s.classify("recent closes", symbol, err)
	}
	defer rows.Close()

	var points []model.ClosePoint
	for rows.Next() {
		var p model.ClosePoint
		if err := rows.Scan(&p.OpenTime, &p.Close); err != nil {
			return nil, s.classify("scan", symbol, err)
		}
		p.OpenTime = p.OpenTime.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("recent closes", symbol, err)
	}

	// Descending from the query, ascending for the window.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	return points, nil
}

// classify maps driver errors onto the monitor's error taxonomy.
func (s *Store) classify(op, symbol string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%s %s: %w: create it with:\n\n%s\n", op, symbol, ErrRelationMissing, SchemaDDL(symbol))
	}
	return fmt.Errorf("%s %s: %w: %w", op, symbol, ErrUnavailable, err)
}

// Healthy pings the pool, for startup checks.
func (s *Store) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.Ping(ctx)
}
