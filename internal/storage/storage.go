// Package storage provides database storage implementations for candle data.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/navid-fn/radar/configs"
	"github.com/navid-fn/radar/internal/storage/models"
)

// ErrUnsupportedProtocol is returned by Open for unknown store protocols.
var ErrUnsupportedProtocol = errors.New("unsupported store protocol")

// Storage defines the interface for reading the resume point and persisting candles.
type Storage interface {
	// LatestTimestamp returns the most recent utc_timestamp stored for timeframe,
	// across all symbols. ok is false when no row exists yet.
	LatestTimestamp(ctx context.Context, timeframe int) (ts time.Time, ok bool, err error)

	// LatestTimestampForSymbol is LatestTimestamp restricted to one symbol.
	LatestTimestampForSymbol(ctx context.Context, symbol string, timeframe int) (ts time.Time, ok bool, err error)

	// CreateCandles inserts a batch of candles into the database.
	CreateCandles(ctx context.Context, candles []*models.Candle) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases database connection resources.
	Close() error
}

// Open connects to the store described by cfg.
func Open(cfg *configs.StoreConfig) (Storage, error) {
	switch cfg.Driver() {
	case configs.DriverClickHouse:
		return NewClickHouseStorage(cfg.DSN(), cfg.Table)
	case configs.DriverMySQL, configs.DriverPostgres, configs.DriverSQLite:
		db, err := OpenGorm(cfg)
		if err != nil {
			return nil, err
		}
		return NewGormStorage(db, cfg.Table), nil
	case configs.DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, cfg.Protocol)
	}
}

// clickhouseStorage implements Storage using native ClickHouse driver.
// Uses batch inserts for high-throughput data ingestion.
type clickhouseStorage struct {
	conn  driver.Conn
	table string
}

// NewClickHouseStorage creates a new ClickHouse storage connection.
// It parses the DSN, opens a connection, and verifies connectivity with a ping.
// Returns an error if connection cannot be established within 5 seconds.
func NewClickHouseStorage(dsn, table string) (Storage, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	opts.ConnMaxLifetime = 30 * time.Second

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &clickhouseStorage{conn: conn, table: table}, nil
}

func (s *clickhouseStorage) LatestTimestamp(ctx context.Context, timeframe int) (time.Time, bool, error) {
	query := fmt.Sprintf("SELECT utc_timestamp FROM %s WHERE timeframe = ? ORDER BY utc_timestamp DESC LIMIT 1", s.table)
	return s.latest(ctx, query, uint32(timeframe))
}

func (s *clickhouseStorage) LatestTimestampForSymbol(ctx context.Context, symbol string, timeframe int) (time.Time, bool, error) {
	query := fmt.Sprintf("SELECT utc_timestamp FROM %s WHERE symbol = ? AND timeframe = ? ORDER BY utc_timestamp DESC LIMIT 1", s.table)
	return s.latest(ctx, query, symbol, uint32(timeframe))
}

func (s *clickhouseStorage) latest(ctx context.Context, query string, args ...any) (time.Time, bool, error) {
	var ts time.Time
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return ts.UTC(), true, nil
}

// CreateCandles inserts candle rows using ClickHouse batch insert.
func (s *clickhouseStorage) CreateCandles(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			symbol, timeframe, utc_timestamp,
			open, high, low, close, volume
		)
	`, s.table))
	if err != nil {
		return err
	}

	for _, c := range candles {
		err := batch.Append(
			c.Symbol,
			uint32(c.Timeframe),
			c.UTCTimestamp,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
		)
		if err != nil {
			_ = batch.Abort()
			return err
		}
	}

	return batch.Send()
}

func (s *clickhouseStorage) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the ClickHouse connection.
func (s *clickhouseStorage) Close() error {
	return s.conn.Close()
}
