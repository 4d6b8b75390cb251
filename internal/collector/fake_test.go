package collector

import (
	"context"
	"errors"
	"time"

	"github.com/navid-fn/radar/internal/exchange"
)

var errTimeout = exchange.NewError(exchange.KindTimeout, "Binance", "fetch_candles", context.DeadlineExceeded)

type fetchCall struct {
	symbol    string
	timeframe string
	sinceMs   int64
	limit     int
}

// fakeExchange serves one candle per granularity step from sinceMs up to
// now. Queued errors are returned by the next calls in order.
type fakeExchange struct {
	markets    []string
	timeframes map[string]int
	rate       time.Duration
	now        time.Time
	errs       []error
	calls      []fetchCall
}

func newFakeExchange(now time.Time) *fakeExchange {
	return &fakeExchange{
		markets:    []string{"BTCUSDT", "ETHBTC", "ETHUSDT"},
		timeframes: map[string]int{"1m": 60, "1h": 3600, "1d": 86400},
		rate:       50 * time.Millisecond,
		now:        now,
	}
}

func (f *fakeExchange) Name() string { return "Binance" }

func (f *fakeExchange) LoadMarkets(ctx context.Context) ([]string, error) {
	return f.markets, nil
}

func (f *fakeExchange) Timeframes() map[string]int { return f.timeframes }

func (f *fakeExchange) RateLimit() time.Duration { return f.rate }

func (f *fakeExchange) FetchCandles(ctx context.Context, symbol string, limit int, sinceMs int64, timeframe string) ([]exchange.RawCandle, error) {
	f.calls = append(f.calls, fetchCall{symbol, timeframe, sinceMs, limit})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	g, ok := f.timeframes[timeframe]
	if !ok {
		return nil, errors.New("unsupported timeframe")
	}
	var out []exchange.RawCandle
	for k := 0; k < limit; k++ {
		ts := sinceMs + int64(k)*int64(g)*1000
		if ts > f.now.UnixMilli() {
			break
		}
		out = append(out, exchange.RawCandle{OpenTime: ts, Open: "100", High: "110", Low: "90", Close: "105", Volume: "10"})
	}
	return out, nil
}

type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return ctx.Err()
}
