package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Time   int64  `json:"time"`
}

// Price fetches the current trade price for symbol.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	body, err := c.get(ctx, "/fapi/v1/ticker/price", query)
	if err != nil {
		return 0, err
	}

	var resp tickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode ticker: %w: %w", ErrMalformedResponse, err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker price %q: %w", resp.Price, ErrMalformedResponse)
	}
	if price <= 0 {
		return 0, fmt.Errorf("ticker price %v: %w", price, ErrMalformedResponse)
	}

	return price, nil
}
