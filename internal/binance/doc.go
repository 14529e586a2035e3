// Package binance is a thin client for the Binance USDⓈ-M futures
// market-data API.
//
// Only two capabilities are consumed:
//   - Klines: one page of 1-minute OHLCV candles for a symbol
//   - Price: the current trade price for a symbol
//
// Requests are rate-limited client-side (the exchange allows 1200
// request weight per minute) and retried with exponential backoff on
// transient failures.
package binance
