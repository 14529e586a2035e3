// Package model defines shared data types used across the monitor.
//
// Conventions:
//   - Prices and volumes: float64, parsed from the exchange's decimal strings
//   - Timestamps: time.Time; candle boundaries are minute-aligned
//   - A candle's open time is its unique key within a symbol's table
package model
