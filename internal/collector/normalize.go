package collector

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/navid-fn/radar/internal/exchange"
	"github.com/navid-fn/radar/internal/storage/models"
)

// ErrMalformedCandle is returned when a price or volume is not a number.
var ErrMalformedCandle = errors.New("malformed candle")

// Normalize converts one exchange row into a stored candle. The open time
// is truncated to whole seconds. Prices are stored as received; OHLC
// ordering is not checked.
func Normalize(raw exchange.RawCandle, symbol string, granularity int) (models.Candle, error) {
	fields := [5]struct {
		name  string
		value string
	}{
		{"open", raw.Open},
		{"high", raw.High},
		{"low", raw.Low},
		{"close", raw.Close},
		{"volume", raw.Volume},
	}

	var parsed [5]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f.value, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("%w: %s at %d: %s %q", ErrMalformedCandle, symbol, raw.OpenTime, f.name, f.value)
		}
		parsed[i] = v
	}

	return models.Candle{
		Symbol:       symbol,
		Timeframe:    granularity,
		UTCTimestamp: time.Unix(raw.OpenTime/1000, 0).UTC(),
		Open:         parsed[0],
		High:         parsed[1],
		Low:          parsed[2],
		Close:        parsed[3],
		Volume:       parsed[4],
	}, nil
}
