package collector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/radar/internal/exchange"
	"github.com/navid-fn/radar/internal/faulttolerance"
)

// ErrRetriesExhausted is wrapped into the error Fetch returns after every
// attempt timed out.
var ErrRetriesExhausted = faulttolerance.ErrMaxAttempts

const (
	DefaultAttempts   = 5
	DefaultRetryDelay = 60 * time.Second
)

// Fetcher performs one paginated candle request with the collector's retry
// policy: timeouts are retried after a fixed delay, every other error is
// returned at once, and the exchange rate limit is waited out once after a
// successful call.
type Fetcher struct {
	attempts int
	delay    time.Duration
	logger   logrus.FieldLogger

	// Sleep waits between attempts and after a success. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewFetcher(attempts int, delay time.Duration, logger logrus.FieldLogger) *Fetcher {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	return &Fetcher{
		attempts: attempts,
		delay:    delay,
		logger:   logger,
		Sleep:    faulttolerance.Sleep,
	}
}

// Fetch requests up to limit candles of timeframe for symbol starting at
// sinceMs. Every retry uses identical arguments.
func (f *Fetcher) Fetch(ctx context.Context, ex exchange.Exchange, symbol, timeframe string, sinceMs int64, limit int) ([]exchange.RawCandle, error) {
	cfg := faulttolerance.FixedRetryConfig(ex.Name(), f.attempts, f.delay)
	cfg.IsRetryable = exchange.IsRetryable
	cfg.Sleep = f.Sleep

	logger := f.logger.WithFields(logrus.Fields{"symbol": symbol, "timeframe": timeframe, "since_ms": sinceMs})
	retryer := faulttolerance.NewRetryer(cfg, logger)

	var rows []exchange.RawCandle
	err := retryer.Execute(ctx, func(attempt int) error {
		var err error
		rows, err = ex.FetchCandles(ctx, symbol, limit, sinceMs, timeframe)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := f.Sleep(ctx, ex.RateLimit()); err != nil {
		return nil, err
	}
	return rows, nil
}
