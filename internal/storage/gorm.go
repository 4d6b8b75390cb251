package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/navid-fn/radar/configs"
	"github.com/navid-fn/radar/internal/storage/models"
)

// insertBatchSize bounds the rows per INSERT statement.
const insertBatchSize = 500

type gormStorage struct {
	db    *gorm.DB
	table string
}

// NewGormStorage wraps an open gorm connection.
func NewGormStorage(db *gorm.DB, table string) Storage {
	if table == "" {
		table = models.DefaultTable
	}
	return &gormStorage{db: db, table: table}
}

// OpenGorm opens the relational database described by cfg. Connections are
// recycled after cfg.ConnMaxLifetime and the pool is pinged before returning.
func OpenGorm(cfg *configs.StoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver() {
	case configs.DriverMySQL:
		dialector = mysql.Open(cfg.DSN())
	case configs.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case configs.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, cfg.Protocol)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.Driver() == configs.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (s *gormStorage) LatestTimestamp(ctx context.Context, timeframe int) (time.Time, bool, error) {
	return s.latest(s.db.WithContext(ctx).
		Table(s.table).
		Where(clause.Eq{Column: clause.Column{Name: "timeframe"}, Value: timeframe}))
}

func (s *gormStorage) LatestTimestampForSymbol(ctx context.Context, symbol string, timeframe int) (time.Time, bool, error) {
	return s.latest(s.db.WithContext(ctx).
		Table(s.table).
		Where(clause.Eq{Column: clause.Column{Name: "symbol"}, Value: symbol}).
		Where(clause.Eq{Column: clause.Column{Name: "timeframe"}, Value: timeframe}))
}

// latest runs SELECT utc_timestamp ... ORDER BY utc_timestamp DESC LIMIT 1.
// Column names go through clause.Column so utc_timestamp is quoted on MySQL,
// where it is a reserved function name.
func (s *gormStorage) latest(tx *gorm.DB) (time.Time, bool, error) {
	var stamps []time.Time
	err := tx.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "utc_timestamp"}, Desc: true}).
		Limit(1).
		Pluck("utc_timestamp", &stamps).Error
	if err != nil {
		return time.Time{}, false, err
	}
	if len(stamps) == 0 {
		return time.Time{}, false, nil
	}
	return stamps[0].UTC(), true, nil
}

func (s *gormStorage) CreateCandles(ctx context.Context, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Table(s.table).CreateInBatches(candles, insertBatchSize).Error
}

func (s *gormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *gormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
