// Package nobitex implements the exchange capability for the Nobitex REST API.
// API Doc: https://apidocs.nobitex.ir/#6ae2dae4a2
//
// IRT markets are quoted in Rial as the exchange returns them.
package nobitex

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
	name           = "Nobitex"
	defaultBaseURL = "https://apiv2.nobitex.ir"
	historyPath    = "/market/udf/history"
	marketsPath    = "/market/stats"

	// 60 requests per minute
	rateLimit = time.Second
)

var resolutions = map[string]udf.Resolution{
	"1m":  {Code: "1", Seconds: 60},
	"5m":  {Code: "5", Seconds: 300},
	"15m": {Code: "15", Seconds: 900},
	"30m": {Code: "30", Seconds: 1800},
	"1h":  {Code: "60", Seconds: 3600},
	"3h":  {Code: "180", Seconds: 10800},
	"4h":  {Code: "240", Seconds: 14400},
	"6h":  {Code: "360", Seconds: 21600},
	"12h": {Code: "720", Seconds: 43200},
	"1d":  {Code: "D", Seconds: 86400},
	"2d":  {Code: "2D", Seconds: 172800},
	"3d":  {Code: "3D", Seconds: 259200},
}

type symbolStats struct {
	IsClosed bool `json:"isClosed"`
}

type statsResponse struct {
	Status string                 `json:"status"`
	Stats  map[string]symbolStats `json:"stats"`
}

func init() {
	exchange.Register("nobitex", func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts)
	})
}

// Nobitex is the REST driver.
type Nobitex struct {
	client *udf.Client
}

// New creates a Nobitex driver.
func New(opts exchange.Options) (*Nobitex, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	c, err := udf.NewClient(name, base, opts.HTTP(), rateLimit)
	if err != nil {
		return nil, err
	}
	return &Nobitex{client: c}, nil
}

func (n *Nobitex) Name() string { return name }

func (n *Nobitex) RateLimit() time.Duration { return rateLimit }

func (n *Nobitex) Timeframes() map[string]int { return udf.Timeframes(resolutions) }

// LoadMarkets fetches the markets that are not closed.
func (n *Nobitex) LoadMarkets(ctx context.Context) ([]string, error) {
	var data statsResponse
	if err := n.client.Get(ctx, "load_markets", marketsPath, nil, &data); err != nil {
		return nil, err
	}
	if data.Status != "ok" {
		return nil, exchange.NewError(exchange.KindBadResponse, name, "load_markets", fmt.Errorf("API returned status %q", data.Status))
	}

	var symbols []string
	for pair, stats := range data.Stats {
		if !stats.IsClosed {
			symbols = append(symbols, transformPair(pair))
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// FetchCandles fetches up to limit candles starting at sinceMs.
func (n *Nobitex) FetchCandles(ctx context.Context, symbol string, limit int, sinceMs int64, timeframe string) ([]exchange.RawCandle, error) {
	res, ok := resolutions[timeframe]
	if !ok {
		return nil, exchange.NewError(exchange.KindBadResponse, name, "fetch_candles", fmt.Errorf("unsupported timeframe %q", timeframe))
	}
	return n.client.History(ctx, historyPath, symbol, res, sinceMs, limit)
}

// transformPair turns a stats key into a market symbol.
// example: btc-rls -> BTCIRT
func transformPair(pair string) string {
	parts := strings.Split(pair, "-")
	for i := range parts {
		parts[i] = strings.ToUpper(parts[i])
	}
	if len(parts) > 1 && parts[len(parts)-1] == "RLS" {
		parts[len(parts)-1] = "IRT"
	}
	return strings.Join(parts, "")
}
