package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *MonitorConfig) Validate() error {
	if err := validateSymbol("symbols.target", c.Symbols.Target); err != nil {
		return err
	}
	if err := validateSymbol("symbols.reference", c.Symbols.Reference); err != nil {
		return err
	}
	if c.Symbols.Target == c.Symbols.Reference {
		return errors.New("symbols.target and symbols.reference must differ")
	}

	if c.API.RateLimit < 1 {
		return errors.New("api.rate_limit must be >= 1")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Backfill.PageSize < 1 || c.Backfill.PageSize > 1000 {
		return fmt.Errorf("backfill.page_size must be between 1 and 1000, got %d", c.Backfill.PageSize)
	}

	if c.Poller.TickInterval <= 0 {
		return errors.New("poller.tick_interval must be positive")
	}
	if c.Poller.BackfillEvery <= 0 {
		return errors.New("poller.backfill_every must be positive")
	}
	if c.Poller.PriceSource != "rest" && c.Poller.PriceSource != "ws" {
		return fmt.Errorf("poller.price_source must be \"rest\" or \"ws\", got %q", c.Poller.PriceSource)
	}

	if c.Analyzer.WindowMinutes < 2 {
		return errors.New("analyzer.window_minutes must be >= 2")
	}
	if c.Analyzer.Threshold <= 0 {
		return errors.New("analyzer.threshold must be positive")
	}

	return nil
}

// validateSymbol rejects symbols that would not survive being used as a
// table identifier. Uppercase letters and digits cover every perpetual
// futures symbol the exchange lists.
func validateSymbol(field, symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%s is required", field)
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("%s: invalid symbol %q (want uppercase letters and digits)", field, symbol)
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
