package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/radar/internal/exchange"
	"github.com/navid-fn/radar/internal/storage/models"
)

func TestNormalizeTruncatesMilliseconds(t *testing.T) {
	raw := exchange.RawCandle{OpenTime: 1609459200500, Open: "100", High: "110", Low: "90", Close: "105", Volume: "10"}

	got, err := Normalize(raw, "BTCUSDT", 60)
	require.NoError(t, err)

	assert.Equal(t, models.Candle{
		Symbol:       "BTCUSDT",
		Timeframe:    60,
		UTCTimestamp: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:         100,
		High:         110,
		Low:          90,
		Close:        105,
		Volume:       10,
	}, got)
}

func TestNormalizeKeepsUnorderedPrices(t *testing.T) {
	raw := exchange.RawCandle{OpenTime: 1609459260999, Open: "5", High: "1", Low: "9", Close: "2.5e1", Volume: "-1"}

	got, err := Normalize(raw, "ETHUSDT", 60)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 1, 0, 0, time.UTC), got.UTCTimestamp)
	assert.Equal(t, 1.0, got.High)
	assert.Equal(t, 9.0, got.Low)
	assert.Equal(t, 25.0, got.Close)
	assert.Equal(t, -1.0, got.Volume)
}

func TestNormalizeRejectsNonNumeric(t *testing.T) {
	raw := exchange.RawCandle{OpenTime: 1609459200000, Open: "100", High: "n/a", Low: "90", Close: "105", Volume: "10"}

	_, err := Normalize(raw, "BTCUSDT", 60)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedCandle)
	assert.Contains(t, err.Error(), "high")
}
