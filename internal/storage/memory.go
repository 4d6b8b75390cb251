package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/navid-fn/radar/internal/storage/models"
)

type candleKey struct {
	symbol    string
	timeframe int
	unix      int64
}

// MemoryStorage keeps candles in process memory. It enforces the same
// (symbol, timeframe, utc_timestamp) uniqueness the SQL schema does and is
// used for dry runs and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	candles map[candleKey]models.Candle
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{candles: make(map[candleKey]models.Candle)}
}

func (m *MemoryStorage) LatestTimestamp(ctx context.Context, timeframe int) (time.Time, bool, error) {
	return m.latest(func(k candleKey) bool { return k.timeframe == timeframe })
}

func (m *MemoryStorage) LatestTimestampForSymbol(ctx context.Context, symbol string, timeframe int) (time.Time, bool, error) {
	return m.latest(func(k candleKey) bool { return k.timeframe == timeframe && k.symbol == symbol })
}

func (m *MemoryStorage) latest(match func(candleKey) bool) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best  int64
		found bool
	)
	for k := range m.candles {
		if match(k) && (!found || k.unix > best) {
			best, found = k.unix, true
		}
	}
	if !found {
		return time.Time{}, false, nil
	}
	return time.Unix(best, 0).UTC(), true, nil
}

// CreateCandles inserts all candles or none.
func (m *MemoryStorage) CreateCandles(ctx context.Context, candles []*models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[candleKey]bool, len(candles))
	for _, c := range candles {
		k := candleKey{c.Symbol, c.Timeframe, c.UTCTimestamp.Unix()}
		if _, dup := m.candles[k]; dup || seen[k] {
			return fmt.Errorf("duplicate candle %s/%d at %s", c.Symbol, c.Timeframe, c.UTCTimestamp.UTC().Format(time.RFC3339))
		}
		seen[k] = true
	}
	for _, c := range candles {
		m.candles[candleKey{c.Symbol, c.Timeframe, c.UTCTimestamp.Unix()}] = *c
	}
	return nil
}

// Candles returns every stored candle ordered by symbol, timeframe and time.
func (m *MemoryStorage) Candles() []models.Candle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Candle, 0, len(m.candles))
	for _, c := range m.candles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		if out[i].Timeframe != out[j].Timeframe {
			return out[i].Timeframe < out[j].Timeframe
		}
		return out[i].UTCTimestamp.Before(out[j].UTCTimestamp)
	})
	return out
}

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) Close() error { return nil }
