// Package configs provides the collector configuration loaded from
// <dir>/settings.yaml, with database credentials overridable from the
// environment or an optional <dir>/.env file.
package configs

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/navid-fn/radar/internal/storage/models"
)

// ErrInvalidConfig is wrapped by every error Load returns.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	// FileName is the settings file looked up inside the config directory.
	FileName = "settings.yaml"

	// SinceLayout is the layout of exchange.since, interpreted in UTC.
	SinceLayout = "2006-01-02 15:04:05"
)

// Store drivers understood by the storage layer.
const (
	DriverMySQL      = "mysql"
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	DriverClickHouse = "clickhouse"
	DriverMemory     = "memory"
)

// Config holds everything one collection run needs.
type Config struct {
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Store     StoreConfig     `yaml:"store"`
	Collector CollectorConfig `yaml:"collector"`
	Publisher PublisherConfig `yaml:"publisher"`
	Log       LogConfig       `yaml:"log"`
}

// ExchangeConfig selects the exchange and what to collect from it.
type ExchangeConfig struct {
	// ID is the driver registry key, e.g. "binance".
	ID string `yaml:"id" validate:"required"`

	// Limit is the maximum number of candles requested per call.
	Limit int `yaml:"limit" validate:"gt=0"`

	// Timeframes lists timeframe labels such as "1h" or "1d".
	Timeframes []string `yaml:"timeframes" validate:"required,min=1,dive,required"`

	// Since is the fallback start time used when the table holds no row
	// for a timeframe yet. Format: SinceLayout, UTC.
	Since string `yaml:"since" validate:"required"`

	// SymbolFilter keeps markets whose symbol contains it. Default "USD".
	SymbolFilter string `yaml:"symbol_filter"`

	BaseURL        string        `yaml:"base_url" validate:"omitempty,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

// SinceTime parses Since.
func (e ExchangeConfig) SinceTime() (time.Time, error) {
	return time.ParseInLocation(SinceLayout, e.Since, time.UTC)
}

// StoreConfig holds the candle database connection settings.
type StoreConfig struct {
	// Protocol names the database. Driver suffixes are accepted and
	// ignored, so "mysql+pymysql" selects MySQL.
	Protocol string `yaml:"protocol" validate:"required"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Host is host:port. Unused for sqlite.
	Host string `yaml:"host"`

	// DBName is the database name, or the file path for sqlite.
	DBName string `yaml:"dbname"`

	Table           string        `yaml:"table" validate:"sqlident"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
}

// CollectorConfig tunes the fetch loop.
type CollectorConfig struct {
	RetryAttempts int           `yaml:"retry_attempts" validate:"gt=0"`
	RetryDelay    time.Duration `yaml:"retry_delay" validate:"gte=0"`

	// ResumePerSymbol resolves the resume point per (symbol, timeframe)
	// instead of per timeframe.
	ResumePerSymbol bool `yaml:"resume_per_symbol"`
}

// PublisherConfig configures the Kafka candle publisher. It is disabled
// when Brokers is empty.
type PublisherConfig struct {
	Brokers []string `yaml:"brokers" validate:"dive,hostname_port"`
	Topic   string   `yaml:"topic" validate:"required_with=Brokers"`
}

// Enabled reports whether candles should be published.
func (p PublisherConfig) Enabled() bool {
	return len(p.Brokers) > 0
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns a configuration with every optional setting filled in.
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			Limit:          500,
			SymbolFilter:   "USD",
			RequestTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Table:           models.DefaultTable,
			ConnMaxLifetime: 30 * time.Second,
		},
		Collector: CollectorConfig{
			RetryAttempts: 5,
			RetryDelay:    60 * time.Second,
		},
		Publisher: PublisherConfig{
			Topic: "radar_ohlc",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads <dir>/settings.yaml on top of Default. A <dir>/.env file, when
// present, is loaded into the environment first; RADAR_DB_USER,
// RADAR_DB_PASSWORD, RADAR_DB_HOST and RADAR_DB_NAME then override the
// store credentials.
func Load(dir string) (*Config, error) {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, envFile, err)
		}
	}

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// legacySettings is the settings.yaml layout of the first collector
// deployments, still accepted so existing config directories keep working.
type legacySettings struct {
	CCXT struct {
		ExchangeID string   `yaml:"exchange_id"`
		Limit      int      `yaml:"limit"`
		Timeframes []string `yaml:"timeframes"`
		Since      string   `yaml:"since"`
	} `yaml:"ccxt"`
	MySQLConnection struct {
		Protocol string `yaml:"protocol"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Host     string `yaml:"host"`
		DBName   string `yaml:"dbname"`
	} `yaml:"mysql_connection"`
}

func (l *legacySettings) apply(cfg *Config) {
	cfg.Exchange.ID = l.CCXT.ExchangeID
	if l.CCXT.Limit != 0 {
		cfg.Exchange.Limit = l.CCXT.Limit
	}
	cfg.Exchange.Timeframes = l.CCXT.Timeframes
	cfg.Exchange.Since = l.CCXT.Since

	cfg.Store.Protocol = l.MySQLConnection.Protocol
	cfg.Store.User = l.MySQLConnection.User
	cfg.Store.Password = l.MySQLConnection.Password
	cfg.Store.Host = l.MySQLConnection.Host
	cfg.Store.DBName = l.MySQLConnection.DBName
}

func isLegacy(data []byte) bool {
	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return false
	}
	_, ok := probe["ccxt"]
	return ok
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Parse decodes and validates a settings document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if isLegacy(data) {
		var legacy legacySettings
		if err := decodeStrict(data, &legacy); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		legacy.apply(cfg)
	} else if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg.Store.User = getEnv("RADAR_DB_USER", cfg.Store.User)
	cfg.Store.Password = getEnv("RADAR_DB_PASSWORD", cfg.Store.Password)
	cfg.Store.Host = getEnv("RADAR_DB_HOST", cfg.Store.Host)
	cfg.Store.DBName = getEnv("RADAR_DB_NAME", cfg.Store.DBName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return models.ValidTableName(fl.Field().String())
	})
	return v
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Exchange.SinceTime(); err != nil {
		return fmt.Errorf("%w: exchange.since %q does not match %q", ErrInvalidConfig, c.Exchange.Since, SinceLayout)
	}

	switch c.Store.Driver() {
	case DriverMySQL, DriverPostgres, DriverClickHouse:
		if c.Store.Host == "" || c.Store.DBName == "" {
			return fmt.Errorf("%w: store.host and store.dbname are required for %s", ErrInvalidConfig, c.Store.Protocol)
		}
	case DriverSQLite:
		if c.Store.DBName == "" {
			return fmt.Errorf("%w: store.dbname must name the sqlite file", ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: unsupported store.protocol %q", ErrInvalidConfig, c.Store.Protocol)
	}
	return nil
}

// Driver normalizes Protocol to one of the Driver constants.
// Example: "mysql+pymysql" -> "mysql", "postgresql" -> "postgres".
func (s StoreConfig) Driver() string {
	p := strings.ToLower(strings.TrimSpace(s.Protocol))
	if i := strings.IndexByte(p, '+'); i >= 0 {
		p = p[:i]
	}
	switch p {
	case "postgresql", "pgx":
		return DriverPostgres
	case "sqlite3":
		return DriverSQLite
	}
	return p
}

// DSN builds the connection string for the selected driver.
func (s StoreConfig) DSN() string {
	switch s.Driver() {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC", s.User, s.Password, s.Host, s.DBName)
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(s.User, s.Password),
			Host:     s.Host,
			Path:     "/" + s.DBName,
			RawQuery: "sslmode=disable&TimeZone=UTC",
		}
		return u.String()
	case DriverSQLite:
		return s.DBName
	case DriverClickHouse:
		return fmt.Sprintf(
			"clickhouse://%s:%s@%s/%s?dial_timeout=10s&read_timeout=20s",
			s.User, s.Password, s.Host, s.DBName,
		)
	}
	return ""
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
