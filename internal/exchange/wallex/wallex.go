// Package wallex implements the exchange capability for the Wallex REST API.
// Candles come from the UDF history endpoint, prices as numeric strings.
// API Doc: https://api.wallex.ir/v1/udf/history
package wallex

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/navid-fn/radar/internal/exchange"
	"github.com/navid-fn/radar/internal/exchange/udf"
)

const (
	name           = "Wallex"
	defaultBaseURL = "https://api.wallex.ir"
	historyPath    = "/v1/udf/history"
	marketsPath    = "/hector/web/v1/markets"
	rateLimit      = time.Second
)

var resolutions = map[string]udf.Resolution{
	"1m":  {Code: "1", Seconds: 60},
	"5m":  {Code: "5", Seconds: 300},
	"15m": {Code: "15", Seconds: 900},
	"30m": {Code: "30", Seconds: 1800},
	"1h":  {Code: "60", Seconds: 3600},
	"3h":  {Code: "180", Seconds: 10800},
	"6h":  {Code: "360", Seconds: 21600},
	"12h": {Code: "720", Seconds: 43200},
	"1d":  {Code: "1D", Seconds: 86400},
	"1w":  {Code: "1W", Seconds: 604800},
}

type market struct {
	Symbol  string `json:"symbol"`
	Enabled bool   `json:"is_market_type_enable"`
}

type marketsResponse struct {
	Result struct {
		Markets []market `json:"markets"`
	} `json:"result"`
}

func init() {
	exchange.Register("wallex", func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts)
	})
}

// Wallex is the REST driver.
type Wallex struct {
	client *udf.Client
}

// New creates a Wallex driver.
func New(opts exchange.Options) (*Wallex, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	c, err := udf.NewClient(name, base, opts.HTTP(), rateLimit)
	if err != nil {
		return nil, err
	}
	return &Wallex{client: c}, nil
}

func (w *Wallex) Name() string { return name }

func (w *Wallex) RateLimit() time.Duration { return rateLimit }

func (w *Wallex) Timeframes() map[string]int { return udf.Timeframes(resolutions) }

// LoadMarkets fetches all enabled markets.
func (w *Wallex) LoadMarkets(ctx context.Context) ([]string, error) {
	var data marketsResponse
	if err := w.client.Get(ctx, "load_markets", marketsPath, nil, &data); err != nil {
		return nil, err
	}
	var markets []string
	for _, m := range data.Result.Markets {
		if m.Enabled {
			markets = append(markets, m.Symbol)
		}
	}
	sort.Strings(markets)
	return markets, nil
}

// FetchCandles fetches up to limit candles starting at sinceMs.
func (w *Wallex) FetchCandles(ctx context.Context, symbol string, limit int, sinceMs int64, timeframe string) ([]exchange.RawCandle, error) {
	res, ok := resolutions[timeframe]
	if !ok {
		return nil, exchange.NewError(exchange.KindBadResponse, name, "fetch_candles", fmt.Errorf("unsupported timeframe %q", timeframe))
	}
	return w.client.History(ctx, historyPath, symbol, res, sinceMs, limit)
}
