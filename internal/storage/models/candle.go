// Package models defines the records persisted by the storage layer.
package models

import (
	"regexp"
	"time"
)

// Candle represents a single candlestick record in the candle table.
// Exactly one row exists per (Symbol, Timeframe, UTCTimestamp).
type Candle struct {
	// Symbol is the exchange-defined pair identifier (e.g., "BTCUSDT").
	Symbol string `json:"symbol" gorm:"column:symbol;primaryKey;size:64"`

	// Timeframe is the candle granularity in seconds (3600 for hourly candles).
	Timeframe int `json:"timeframe" gorm:"column:timeframe;primaryKey;autoIncrement:false"`

	// UTCTimestamp is when the candle opened, truncated to whole seconds, in UTC.
	UTCTimestamp time.Time `json:"utc_timestamp" gorm:"column:utc_timestamp;primaryKey"`

	// Open is the opening price of the candle.
	Open float64 `json:"open" gorm:"column:open"`

	// High is the highest price during the candle period.
	High float64 `json:"high" gorm:"column:high"`

	// Low is the lowest price during the candle period.
	Low float64 `json:"low" gorm:"column:low"`

	// Close is the closing price of the candle.
	Close float64 `json:"close" gorm:"column:close"`

	// Volume is the traded base volume during the candle period.
	Volume float64 `json:"volume" gorm:"column:volume"`
}

// DefaultTable is the table name used by the legacy deployment.
const DefaultTable = "testing_data"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name can be spliced into SQL as a bare identifier.
func ValidTableName(name string) bool {
	return len(name) <= 64 && tableName.MatchString(name)
}
