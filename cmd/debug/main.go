package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/navid-fn/radar/configs"
	"github.com/navid-fn/radar/internal/collector"
	"github.com/navid-fn/radar/internal/exchange"
	_ "github.com/navid-fn/radar/internal/exchange/binance"
	_ "github.com/navid-fn/radar/internal/exchange/nobitex"
	_ "github.com/navid-fn/radar/internal/exchange/wallex"
	"github.com/navid-fn/radar/internal/logging"
	"github.com/navid-fn/radar/internal/storage/models"
)

// tehranLoc is the Asia/Tehran timezone (IRST, UTC+3:30).
var tehranLoc = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		// fallback to fixed offset +3:30
		loc = time.FixedZone("IRST", 3*3600+30*60)
	}
	return loc
}()

func printCandle(exchangeName, label string, c models.Candle) {
	fmt.Printf(
		"[CANDLE] %-10s %-12s interval=%-4s O=%-12.2f H=%-12.2f L=%-12.2f C=%-12.2f vol=%-14.2f open_time=%s tehran=%s\n",
		exchangeName,
		c.Symbol,
		label,
		c.Open,
		c.High,
		c.Low,
		c.Close,
		c.Volume,
		c.UTCTimestamp.Format(time.RFC3339),
		c.UTCTimestamp.In(tehranLoc).Format("2006-01-02 15:04:05"),
	)
}

func usage() {
	fmt.Println("Usage: go run cmd/debug/main.go -exchange=<name> -symbol=<SYMBOL> [-timeframe=1h] [-since=\"2006-01-02 15:04:05\"] [-limit=10]")
	fmt.Println()
	fmt.Println("Fetches one window of candles, normalized as the collector stores them,")
	fmt.Println("and prints it without touching the database.")
	fmt.Println()
	fmt.Println("Available exchanges:", strings.Join(exchange.Available(), ", "))
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  go run cmd/debug/main.go -exchange=binance -symbol=BTCUSDT -timeframe=1d -limit=5")
	fmt.Println("  go run cmd/debug/main.go -exchange=wallex -symbol=USDTTMN -markets")
}

func main() {
	exchangeFlag := flag.String("exchange", "", "exchange id")
	symbolFlag := flag.String("symbol", "", "symbol to fetch (e.g. BTCUSDT)")
	timeframeFlag := flag.String("timeframe", "1h", "timeframe label")
	sinceFlag := flag.String("since", "", "window start in UTC, default limit candles before now")
	limitFlag := flag.Int("limit", 10, "candles to request")
	baseURLFlag := flag.String("base-url", "", "override the exchange REST endpoint")
	marketsFlag := flag.Bool("markets", false, "list the markets matching -symbol instead of fetching")
	flag.Parse()

	if *exchangeFlag == "" || (*symbolFlag == "" && !*marketsFlag) {
		usage()
		os.Exit(1)
	}

	logger, _ := logging.New("debug", "text")

	ex, err := exchange.New(*exchangeFlag, exchange.Options{BaseURL: *baseURLFlag})
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *marketsFlag {
		markets, err := ex.LoadMarkets(ctx)
		if err != nil {
			logger.WithError(err).Error("Failed to load markets")
			os.Exit(1)
		}
		for _, m := range exchange.FilterSymbols(markets, *symbolFlag) {
			fmt.Println(m)
		}
		return
	}

	granularity, ok := ex.Timeframes()[*timeframeFlag]
	if !ok {
		fmt.Printf("Error: %s has no timeframe %q\n", ex.Name(), *timeframeFlag)
		os.Exit(1)
	}

	since := collector.RoundToGranularity(time.Now(), granularity).Add(-collector.Span(granularity, *limitFlag))
	if *sinceFlag != "" {
		since, err = time.ParseInLocation(configs.SinceLayout, *sinceFlag, time.UTC)
		if err != nil {
			fmt.Printf("Error: -since must look like %q\n", configs.SinceLayout)
			os.Exit(1)
		}
	}

	fetcher := collector.NewFetcher(1, 0, logger)
	raw, err := fetcher.Fetch(ctx, ex, *symbolFlag, *timeframeFlag, since.UnixMilli(), *limitFlag)
	if err != nil {
		logger.WithError(err).WithField("kind", exchange.KindOf(err).String()).Error("Fetch failed")
		os.Exit(1)
	}

	fmt.Printf("\n--- %s %s %s from %s ---\n\n", ex.Name(), *symbolFlag, *timeframeFlag, since.Format(time.RFC3339))
	for _, r := range raw {
		c, err := collector.Normalize(r, *symbolFlag, granularity)
		if err != nil {
			logger.WithError(err).Error("Malformed candle")
			continue
		}
		printCandle(ex.Name(), *timeframeFlag, c)
	}
	fmt.Printf("\n--- Done. Candles received: %d ---\n", len(raw))
}
