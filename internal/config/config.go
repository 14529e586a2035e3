package config

import "time"

// MonitorConfig is the root configuration for a monitor instance.
type MonitorConfig struct {
	Symbols  SymbolsConfig  `yaml:"symbols"`
	API      APIConfig      `yaml:"api"`
	Database DBConfig       `yaml:"database"`
	Backfill BackfillConfig `yaml:"backfill"`
	Poller   PollerConfig   `yaml:"poller"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
}

// SymbolsConfig names the two tracked instruments. Target is the
// instrument whose idiosyncratic movement is monitored; Reference is
// the correlated instrument it is measured against.
type SymbolsConfig struct {
	Target    string `yaml:"target"`
	Reference string `yaml:"reference"`
}

// APIConfig holds exchange API settings.
type APIConfig struct {
	RestURL   string        `yaml:"rest_url"`
	WSURL     string        `yaml:"ws_url"`
	Key       string        `yaml:"key"` // Optional, sent as X-MBX-APIKEY
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	RateLimit int           `yaml:"rate_limit"` // Requests per minute
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// BackfillConfig holds historical catch-up settings.
type BackfillConfig struct {
	// AnchorStart is where backfill begins when a symbol's table is empty.
	AnchorStart time.Time `yaml:"anchor_start"`
	// PageSize is the number of candles requested per page, capped by
	// the exchange at 1000.
	PageSize int `yaml:"page_size"`
}

// PollerConfig holds realtime loop settings.
type PollerConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	BackfillEvery time.Duration `yaml:"backfill_every"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	// PriceSource selects where live prices come from: "rest" (ticker
	// endpoint, default) or "ws" (miniTicker stream).
	PriceSource string `yaml:"price_source"`
}

// AnalyzerConfig holds divergence signal settings.
type AnalyzerConfig struct {
	WindowMinutes int     `yaml:"window_minutes"`
	Threshold     float64 `yaml:"threshold"` // Signed-fraction magnitude
}
