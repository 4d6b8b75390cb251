// Package binance implements the exchange capability on top of the Binance
// spot REST API through the go-binance SDK.
package binance

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"

	"github.com/navid-fn/radar/internal/exchange"
)

const (
	name = "Binance"

	// maxLimit is the largest page the klines endpoint serves.
	maxLimit = 1000

	// rateLimit matches the exchange's documented request weight budget.
	rateLimit = 50 * time.Millisecond
)

var timeframes = map[string]int{
	"1m":  60,
	"3m":  180,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"2h":  7200,
	"4h":  14400,
	"6h":  21600,
	"8h":  28800,
	"12h": 43200,
	"1d":  86400,
	"3d":  259200,
	"1w":  604800,
	"1M":  2592000,
}

func init() {
	exchange.Register("binance", func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts), nil
	})
}

// Binance is the go-binance backed driver.
type Binance struct {
	client *binance.Client
}

// New creates a driver using public (unauthenticated) endpoints only.
func New(opts exchange.Options) *Binance {
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = opts.HTTP()
	return &Binance{client: client}
}

func (b *Binance) Name() string { return name }

func (b *Binance) RateLimit() time.Duration { return rateLimit }

func (b *Binance) Timeframes() map[string]int {
	out := make(map[string]int, len(timeframes))
	for k, v := range timeframes {
		out[k] = v
	}
	return out
}

// LoadMarkets returns every symbol currently in TRADING status.
func (b *Binance) LoadMarkets(ctx context.Context) ([]string, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classify("load_markets", errors.Wrap(err, "failed to fetch exchange info"))
	}
	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == "TRADING" {
			symbols = append(symbols, s.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// FetchCandles returns klines starting at sinceMs.
func (b *Binance) FetchCandles(ctx context.Context, symbol string, limit int, sinceMs int64, timeframe string) ([]exchange.RawCandle, error) {
	if _, ok := timeframes[timeframe]; !ok {
		return nil, exchange.NewError(exchange.KindBadResponse, name, "fetch_candles", errors.Errorf("unsupported timeframe %q", timeframe))
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		StartTime(sinceMs).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, classify("fetch_candles", errors.Wrapf(err, "failed to fetch klines for %s", symbol))
	}
	out := make([]exchange.RawCandle, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		out = append(out, exchange.RawCandle{
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		})
	}
	return out, nil
}

// classify maps SDK errors to exchange kinds.
// Codes: https://developers.binance.com/docs/binance-spot-api-docs/errors
func classify(op string, err error) error {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return exchange.TransportError(name, op, err)
	}
	var kind exchange.Kind
	switch apiErr.Code {
	case -1007:
		kind = exchange.KindTimeout
	case -1003, -1015:
		kind = exchange.KindRateLimited
	case -1121, -1100:
		kind = exchange.KindInvalidSymbol
	case -1002, -1022, -2014, -2015:
		kind = exchange.KindAuth
	case -1000, -1001, -1006, -1008:
		kind = exchange.KindUnavailable
	default:
		kind = exchange.KindBadResponse
	}
	return exchange.NewError(kind, name, op, err)
}
