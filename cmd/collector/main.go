// Command collector fetches OHLCV candles for every USD symbol of one
// exchange and appends them to the candle table, resuming each timeframe
// where the previous run stopped.
//
// Usage:
//
//	collector <config-dir>
//
// <config-dir> holds settings.yaml and an optional .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/radar/configs"
	"github.com/navid-fn/radar/internal/collector"
	"github.com/navid-fn/radar/internal/exchange"
	_ "github.com/navid-fn/radar/internal/exchange/binance"
	_ "github.com/navid-fn/radar/internal/exchange/nobitex"
	_ "github.com/navid-fn/radar/internal/exchange/wallex"
	"github.com/navid-fn/radar/internal/logging"
	"github.com/navid-fn/radar/internal/publisher"
	"github.com/navid-fn/radar/internal/storage"
)

const (
	exitOK          = 0
	exitUsage       = 1
	exitConfig      = 2
	exitBootstrap   = 3
	exitCollection  = 4
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: collector <config-dir>")
		return exitUsage
	}

	cfg, err := configs.Load(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		return exitConfig
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create logger:", err)
		return exitConfig
	}

	ex, err := exchange.New(cfg.Exchange.ID, exchange.Options{
		BaseURL:        cfg.Exchange.BaseURL,
		RequestTimeout: cfg.Exchange.RequestTimeout,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create exchange client")
		return exitBootstrap
	}

	store, err := storage.Open(&cfg.Store)
	if err != nil {
		logger.WithError(err).WithField("protocol", cfg.Store.Protocol).Error("Failed to connect to DB")
		return exitBootstrap
	}
	defer store.Close()

	pub := publisher.New(cfg.Publisher, logger)
	defer func() {
		if err := pub.Close(); err != nil {
			logger.WithError(err).Error("Error closing Kafka producer")
		}
	}()

	fetcher := collector.NewFetcher(cfg.Collector.RetryAttempts, cfg.Collector.RetryDelay, logger)
	c := collector.New(ex, store, pub, fetcher, collector.Config{
		Limit:           cfg.Exchange.Limit,
		Timeframes:      cfg.Exchange.Timeframes,
		Since:           cfg.Exchange.Since,
		SymbolFilter:    cfg.Exchange.SymbolFilter,
		ResumePerSymbol: cfg.Collector.ResumePerSymbol,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"exchange":   ex.Name(),
		"timeframes": cfg.Exchange.Timeframes,
		"limit":      cfg.Exchange.Limit,
		"table":      cfg.Store.Table,
	}).Info("Collector started")

	if _, err := c.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			logger.Warn("Collection interrupted")
			return exitInterrupted
		}
		logger.WithError(err).Error("Collection failed")
		return exitCollection
	}
	return exitOK
}
