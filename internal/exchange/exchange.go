// Package exchange defines the capability the collector needs from a market
// data provider and the registry used to pick a driver at startup.
package exchange

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// RawCandle is one candle row as the exchange returned it.
// Prices and volume are kept in their textual form; parsing happens in the collector.
type RawCandle struct {
	// OpenTime is the candle open time in Unix milliseconds.
	OpenTime int64
	Open     string
	High     string
	Low      string
	Close    string
	Volume   string
}

// Exchange is implemented by every market data driver.
type Exchange interface {
	// Name returns the human readable exchange name used in logs.
	Name() string

	// LoadMarkets returns every tradable symbol, sorted.
	LoadMarkets(ctx context.Context) ([]string, error)

	// Timeframes maps the exchange's timeframe labels to granularity in seconds.
	Timeframes() map[string]int

	// RateLimit is the documented minimum delay between two requests.
	RateLimit() time.Duration

	// FetchCandles returns up to limit candles of the given timeframe
	// starting at sinceMs (inclusive).
	FetchCandles(ctx context.Context, symbol string, limit int, sinceMs int64, timeframe string) ([]RawCandle, error)
}

// Options carries driver settings coming from the configuration file.
type Options struct {
	// BaseURL overrides the driver's default REST endpoint when not empty.
	BaseURL string

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration

	// HTTPClient is used instead of a fresh client when set (tests).
	HTTPClient *http.Client
}

// HTTP returns the client drivers should use.
func (o Options) HTTP() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Factory builds a driver from options.
type Factory func(opts Options) (Exchange, error)

var registry = map[string]Factory{}

// Register makes a driver available under id. It panics on duplicates
// since registration happens from init functions.
func Register(id string, f Factory) {
	id = strings.ToLower(strings.TrimSpace(id))
	if _, dup := registry[id]; dup {
		panic("exchange: driver registered twice: " + id)
	}
	registry[id] = f
}

// New builds the driver registered under id.
func New(id string, opts Options) (Exchange, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownExchange, id, strings.Join(Available(), ", "))
	}
	return f(opts)
}

// Available lists registered driver ids.
func Available() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FilterSymbols keeps the markets whose identifier contains substr.
// Example: FilterSymbols(["BTCUSDT", "ETHBTC"], "USD") -> ["BTCUSDT"]
func FilterSymbols(markets []string, substr string) []string {
	var out []string
	for _, m := range markets {
		if strings.Contains(m, substr) {
			out = append(out, m)
		}
	}
	return out
}
