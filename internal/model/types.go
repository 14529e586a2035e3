package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Interval is the candle bucket duration. The monitor works exclusively
// with 1-minute candles.
const Interval = time.Minute

// Candle represents one OHLCV bucket for a symbol.
//
// A candle is immutable once its close time has elapsed; the store only
// ever sees closed candles (the trailing, still-open bucket is dropped
// before persistence).
type Candle struct {
	Symbol    string    // Exchange symbol (e.g., "ETHUSDT")
	OpenTime  time.Time // Bucket open, minute resolution; primary key per symbol
	CloseTime time.Time // Bucket close (OpenTime + Interval - 1ms on the wire)
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Closed reports whether the candle's bucket has fully elapsed at the
// given instant, i.e. whether its values can no longer change upstream.
func (c Candle) Closed(now time.Time) bool {
	return !c.OpenTime.After(now.Add(-Interval))
}

// ClosePoint is a (open time, close price) pair, the projection of a
// candle that the rolling window cares about.
type ClosePoint struct {
	OpenTime time.Time
	Close    float64
}

// Alert is raised when one instrument's own movement over the trailing
// window exceeds the configured threshold.
type Alert struct {
	ID            uuid.UUID // Unique event ID
	Symbol        string    // Instrument whose idiosyncratic movement triggered
	Residual      float64   // Signed fraction (not a percentage)
	WindowMinutes int       // Trailing window length
	At            time.Time // Tick time at which the condition held
}

// NewAlert constructs an alert with a fresh event ID.
func NewAlert(symbol string, residual float64, windowMinutes int, at time.Time) Alert {
	return Alert{
		ID:            uuid.New(),
		Symbol:        symbol,
		Residual:      residual,
		WindowMinutes: windowMinutes,
		At:            at,
	}
}

// TableName derives the per-symbol table name: the lowercased symbol.
// Symbols are validated at config load, so the result is always a safe
// SQL identifier.
func TableName(symbol string) string {
	return strings.ToLower(symbol)
}
