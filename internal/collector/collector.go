// Package collector implements the incremental candle collection run:
// resolve where each timeframe stopped, plan the paginated requests up to
// now, fetch them with retries, normalize the rows and store them.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/radar/internal/exchange"
	"github.com/navid-fn/radar/internal/storage/models"
)

// ErrUnknownTimeframe is returned when a configured timeframe label is not
// offered by the exchange.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Store is what a run needs from the candle table.
type Store interface {
	LatestReader
	CreateCandles(ctx context.Context, candles []*models.Candle) error
	Ping(ctx context.Context) error
}

// Publisher is notified after every successful insert.
type Publisher interface {
	Publish(ctx context.Context, exchange string, candles []*models.Candle) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, []*models.Candle) error { return nil }

// Config is the part of the configuration a run uses.
type Config struct {
	// Limit is the number of candles requested per call.
	Limit int

	// Timeframes are exchange timeframe labels, processed in order.
	Timeframes []string

	// Since is the fallback start, "2006-01-02 15:04:05" in UTC.
	Since string

	// SymbolFilter keeps markets whose symbol contains it.
	SymbolFilter string

	// ResumePerSymbol resolves the resume point per symbol instead of
	// sharing the newest row of the timeframe across all symbols.
	ResumePerSymbol bool
}

// Summary counts what one run did.
type Summary struct {
	Symbols  int
	Requests int
	Inserted int
	Dropped  int
}

// Collector runs one collection pass against one exchange.
type Collector struct {
	exchange  exchange.Exchange
	store     Store
	publisher Publisher
	fetcher   *Fetcher
	cfg       Config
	logger    logrus.FieldLogger

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

func New(ex exchange.Exchange, store Store, pub Publisher, fetcher *Fetcher, cfg Config, logger logrus.FieldLogger) *Collector {
	if cfg.SymbolFilter == "" {
		cfg.SymbolFilter = "USD"
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Collector{
		exchange:  ex,
		store:     store,
		publisher: pub,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger.WithField("exchange", ex.Name()),
		Now:       time.Now,
	}
}

// Run collects every configured timeframe for every matching symbol.
// Symbols already inserted stay committed when a later one fails.
func (c *Collector) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	if err := c.store.Ping(ctx); err != nil {
		return sum, fmt.Errorf("store unavailable: %w", err)
	}

	markets, err := c.exchange.LoadMarkets(ctx)
	if err != nil {
		return sum, fmt.Errorf("load markets: %w", err)
	}
	symbols := exchange.FilterSymbols(markets, c.cfg.SymbolFilter)
	sum.Symbols = len(symbols)
	c.logger.WithFields(logrus.Fields{"markets": len(markets), "symbols": len(symbols)}).Info("Markets loaded")

	timeframes := c.exchange.Timeframes()
	for _, label := range c.cfg.Timeframes {
		granularity, ok := timeframes[label]
		if !ok {
			return sum, fmt.Errorf("%w: %q on %s", ErrUnknownTimeframe, label, c.exchange.Name())
		}
		if err := c.runTimeframe(ctx, label, granularity, symbols, &sum); err != nil {
			return sum, err
		}
	}

	c.logger.WithFields(logrus.Fields{
		"symbols":  sum.Symbols,
		"requests": sum.Requests,
		"inserted": sum.Inserted,
	}).Info("Collection finished")
	return sum, nil
}

func (c *Collector) runTimeframe(ctx context.Context, label string, granularity int, symbols []string, sum *Summary) error {
	logger := c.logger.WithFields(logrus.Fields{"timeframe": label, "granularity": granularity})
	roundedNow := RoundToGranularity(c.Now(), granularity)

	var shared time.Time
	if !c.cfg.ResumePerSymbol {
		since, err := ResolveSince(ctx, c.store, granularity, c.cfg.Since)
		if err != nil {
			return err
		}
		shared = since
		logger.WithFields(logrus.Fields{
			"since": since.Format(time.RFC3339),
			"until": roundedNow.Format(time.RFC3339),
			"loops": PlanLoops(since, roundedNow, granularity, c.cfg.Limit),
		}).Info("Timeframe planned")
	}

	for _, symbol := range symbols {
		since := shared
		if c.cfg.ResumePerSymbol {
			var err error
			if since, err = ResolveSymbolSince(ctx, c.store, symbol, granularity, c.cfg.Since); err != nil {
				return err
			}
		}
		if err := c.collectSymbol(ctx, logger.WithField("symbol", symbol), label, granularity, symbol, since, roundedNow, sum); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) collectSymbol(ctx context.Context, logger logrus.FieldLogger, label string, granularity int, symbol string, since, roundedNow time.Time, sum *Summary) error {
	windows := PlanWindows(since, roundedNow, granularity, c.cfg.Limit)
	logger.WithField("loops", len(windows)).Info("Getting data for symbol")
	if len(windows) == 0 {
		return nil
	}

	var (
		rows    []*models.Candle
		seen    = make(map[int64]struct{})
		dropped int
	)
	for _, w := range windows {
		logger.WithField("loop", w.Index).Debug("Starting loop")

		raw, err := c.fetcher.Fetch(ctx, c.exchange, symbol, label, w.SinceMs(), w.Limit)
		sum.Requests++
		if err != nil {
			return fmt.Errorf("fetch %s %s loop %d: %w", symbol, label, w.Index, err)
		}

		for _, r := range raw {
			candle, err := Normalize(r, symbol, granularity)
			if err != nil {
				return err
			}
			// Rows older than the resume point or repeated across
			// overlapping windows would violate the primary key.
			unix := candle.UTCTimestamp.Unix()
			if _, dup := seen[unix]; dup || candle.UTCTimestamp.Before(since) {
				dropped++
				continue
			}
			seen[unix] = struct{}{}
			rows = append(rows, &candle)
		}
	}
	sum.Dropped += dropped

	if len(rows) == 0 {
		logger.Info("No new candles")
		return nil
	}

	if err := c.store.CreateCandles(ctx, rows); err != nil {
		return fmt.Errorf("insert %s %s: %w", symbol, label, err)
	}
	sum.Inserted += len(rows)
	logger.WithFields(logrus.Fields{"rows": len(rows), "dropped": dropped}).Info("Rows inserted")

	if err := c.publisher.Publish(ctx, c.exchange.Name(), rows); err != nil {
		logger.WithError(err).Warn("Failed to publish candles")
	}
	return nil
}
