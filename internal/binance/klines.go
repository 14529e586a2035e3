package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/RomanchenkoAS/ethusdt-monitor/internal/model"
)

// MaxPageSize is the exchange's cap on candles per klines request.
const MaxPageSize = 1000

// Klines fetches one page of up to limit 1-minute candles for symbol,
// ascending by open time, beginning at or after start.
//
// The wire format is a JSON array of arrays:
//
//	[ openTimeMs, "open", "high", "low", "close", "volume", closeTimeMs, ... ]
func (c *Client) Klines(ctx context.Context, symbol string, start time.Time, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", "1m")
	query.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	query.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/fapi/v1/klines", query)
	if err != nil {
		return nil, err
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w: %w", ErrMalformedResponse, err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for i, row := range raw {
		candle, err := parseKline(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		if i > 0 && !candle.OpenTime.After(candles[i-1].OpenTime) {
			return nil, fmt.Errorf("kline %d: open times not ascending: %w", i, ErrMalformedResponse)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseKline converts one mixed-type kline row into a Candle.
func parseKline(symbol string, row []json.RawMessage) (model.Candle, error) {
	if len(row) < 7 {
		return model.Candle{}, fmt.Errorf("%w: want >= 7 fields, got %d", ErrMalformedResponse, len(row))
	}

	openMs, err := parseMillis(row[0])
	if err != nil {
		return model.Candle{}, fmt.Errorf("open time: %w", err)
	}
	closeMs, err := parseMillis(row[6])
	if err != nil {
		return model.Candle{}, fmt.Errorf("close time: %w", err)
	}

	var prices [5]float64
	for i := 1; i <= 5; i++ {
		prices[i-1], err = parseDecimal(row[i])
		if err != nil {
			return model.Candle{}, err
		}
	}

	return model.Candle{
		Symbol:    symbol,
		OpenTime:  time.UnixMilli(openMs).UTC(),
		CloseTime: time.UnixMilli(closeMs).UTC(),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
	}, nil
}

// parseMillis decodes a JSON integer millisecond timestamp.
func parseMillis(raw json.RawMessage) (int64, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("%w: non-positive timestamp %d", ErrMalformedResponse, ms)
	}
	return ms, nil
}

// parseDecimal decodes the exchange's quoted decimal strings ("1820.55").
func parseDecimal(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad decimal %q", ErrMalformedResponse, s)
	}
	return v, nil
}
