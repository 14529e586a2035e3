package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTargetSymbol    = "ETHUSDT"
	DefaultReferenceSymbol = "BTCUSDT"
	DefaultRestURL         = "https://fapi.binance.com"
	DefaultWSURL           = "wss://fstream.binance.com"
	DefaultAPITimeout      = 10 * time.Second
	DefaultRetries         = 3
	DefaultRateLimit       = 1200 // Exchange cap, requests per minute
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultPageSize        = 1000
	DefaultTickInterval    = 1 * time.Second
	DefaultBackfillEvery   = 60 * time.Second
	DefaultFetchTimeout    = 5 * time.Second
	DefaultPriceSource     = "rest"
	DefaultWindowMinutes   = 60
	DefaultThreshold       = 0.01
)

// DefaultAnchorStart is where backfill begins on an empty store.
var DefaultAnchorStart = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

func (c *MonitorConfig) applyDefaults() {
	if c.Symbols.Target == "" {
		c.Symbols.Target = DefaultTargetSymbol
	}
	if c.Symbols.Reference == "" {
		c.Symbols.Reference = DefaultReferenceSymbol
	}

	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.Retries == 0 {
		c.API.Retries = DefaultRetries
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultRateLimit
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Backfill.AnchorStart.IsZero() {
		c.Backfill.AnchorStart = DefaultAnchorStart
	}
	if c.Backfill.PageSize == 0 {
		c.Backfill.PageSize = DefaultPageSize
	}

	if c.Poller.TickInterval == 0 {
		c.Poller.TickInterval = DefaultTickInterval
	}
	if c.Poller.BackfillEvery == 0 {
		c.Poller.BackfillEvery = DefaultBackfillEvery
	}
	if c.Poller.FetchTimeout == 0 {
		c.Poller.FetchTimeout = DefaultFetchTimeout
	}
	if c.Poller.PriceSource == "" {
		c.Poller.PriceSource = DefaultPriceSource
	}

	if c.Analyzer.WindowMinutes == 0 {
		c.Analyzer.WindowMinutes = DefaultWindowMinutes
	}
	if c.Analyzer.Threshold == 0 {
		c.Analyzer.Threshold = DefaultThreshold
	}
}
