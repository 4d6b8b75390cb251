package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/navid-fn/radar/configs"
)

// LatestReader answers the resume point queries.
type LatestReader interface {
	LatestTimestamp(ctx context.Context, timeframe int) (time.Time, bool, error)
	LatestTimestampForSymbol(ctx context.Context, symbol string, timeframe int) (time.Time, bool, error)
}

// ResolveSince returns the instant collection resumes from for granularity:
// one granularity after the newest stored candle of that timeframe across
// all symbols, or fallback when the timeframe has no rows yet.
func ResolveSince(ctx context.Context, store LatestReader, granularity int, fallback string) (time.Time, error) {
	latest, ok, err := store.LatestTimestamp(ctx, granularity)
	return resume(latest, ok, err, granularity, fallback)
}

// ResolveSymbolSince is ResolveSince for a single symbol.
func ResolveSymbolSince(ctx context.Context, store LatestReader, symbol string, granularity int, fallback string) (time.Time, error) {
	latest, ok, err := store.LatestTimestampForSymbol(ctx, symbol, granularity)
	return resume(latest, ok, err, granularity, fallback)
}

func resume(latest time.Time, ok bool, err error, granularity int, fallback string) (time.Time, error) {
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest timestamp: %w", err)
	}
	if ok {
		return latest.UTC().Add(time.Duration(granularity) * time.Second), nil
	}
	since, err := time.ParseInLocation(configs.SinceLayout, fallback, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse fallback start %q: %w", fallback, err)
	}
	return since, nil
}
