package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNoQuote is returned when no fresh price is cached for a symbol,
// either because the stream has not delivered one yet or because the
// cached one went stale.
var ErrNoQuote = errors.New("no fresh quote")

const (
	defaultStaleAfter  = 10 * time.Second
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	readTimeout        = 30 * time.Second
	pingInterval       = 15 * time.Second
)

type quote struct {
	price float64
	at    time.Time
}

// Feed maintains a websocket subscription to the miniTicker streams of
// the given symbols and caches the latest price per symbol.
type Feed struct {
	wsURL      string
	symbols    []string
	staleAfter time.Duration
	logger     *slog.Logger

	now func() time.Time

	mu     sync.RWMutex
	latest map[string]quote

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed creates a Feed for the given symbols.
func NewFeed(wsURL string, symbols []string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		wsURL:      wsURL,
		symbols:    symbols,
		staleAfter: defaultStaleAfter,
		logger:     logger,
		now:        time.Now,
		latest:     make(map[string]quote),
	}
}

// Start begins consuming the stream.
func (f *Feed) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.run()

	f.logger.Info("price stream started", "symbols", f.symbols)
	return nil
}

// Stop shuts the feed down.
func (f *Feed) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("price stream stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Price returns the cached live price for symbol. It satisfies the
// same capability as the REST ticker endpoint but never blocks on the
// network.
func (f *Feed) Price(ctx context.Context, symbol string) (float64, error) {
	f.mu.RLock()
	q, ok := f.latest[symbol]
	f.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNoQuote)
	}
	if age := f.now().Sub(q.at); age > f.staleAfter {
		return 0, fmt.Errorf("%s: quote is %v old: %w", symbol, age, ErrNoQuote)
	}
	return q.price, nil
}

// streamURL builds the combined-stream URL for all symbols.
func (f *Feed) streamURL() string {
	streams := make([]string, len(f.symbols))
	for i, s := range f.symbols {
		streams[i] = strings.ToLower(s) + "@miniTicker"
	}
	return f.wsURL + "/stream?streams=" + strings.Join(streams, "/")
}

// run reconnects with capped exponential backoff until stopped.
func (f *Feed) run() {
	defer f.wg.Done()

	backoff := reconnectBaseDelay
	for {
		if f.ctx.Err() != nil {
			return
		}

		err := f.consume()
		if f.ctx.Err() != nil {
			return
		}
		f.logger.Warn("price stream disconnected, reconnecting",
			"err", err,
			"backoff", backoff,
		)

		select {
		case <-f.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMaxDelay {
			backoff = reconnectMaxDelay
		}
	}
}

// consume runs one websocket session until it fails.
func (f *Feed) consume() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(f.ctx, f.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	f.logger.Info("price stream connected", "symbols", f.symbols)

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(f.ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-f.ctx.Done():
			return f.ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		symbol, price, err := parseMiniTicker(message)
		if err != nil {
			f.logger.Warn("bad stream message", "err", err)
			continue
		}

		f.mu.Lock()
		f.latest[symbol] = quote{price: price, at: f.now()}
		f.mu.Unlock()
	}
}

type miniTickerEnvelope struct {
	Stream string         `json:"stream"`
	Data   miniTickerData `json:"data"`
}

type miniTickerData struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// parseMiniTicker decodes one combined-stream miniTicker frame.
func parseMiniTicker(message []byte) (symbol string, price float64, err error) {
	var env miniTickerEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return "", 0, fmt.Errorf("decode frame: %w", err)
	}
	if env.Data.Symbol == "" {
		return "", 0, errors.New("frame has no symbol")
	}
	price, err = strconv.ParseFloat(env.Data.Close, 64)
	if err != nil {
		return "", 0, fmt.Errorf("bad close price %q", env.Data.Close)
	}
	return env.Data.Symbol, price, nil
}
