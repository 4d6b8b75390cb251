// Command migrate creates the candle table described by <config-dir>/settings.yaml.
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
	"github.com/pressly/goose/v3"
	_ "gorm.io/driver/mysql"
	_ "gorm.io/driver/postgres"
	_ "gorm.io/driver/sqlite"

	"github.com/navid-fn/radar/configs"
	"github.com/navid-fn/radar/internal/logging"
	"github.com/navid-fn/radar/internal/migrations"
)

// sqlDrivers maps store drivers to database/sql driver names.
var sqlDrivers = map[string]string{
	configs.DriverMySQL:      "mysql",
	configs.DriverPostgres:   "pgx",
	configs.DriverSQLite:     "sqlite3",
	configs.DriverClickHouse: "clickhouse",
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: migrate <config-dir>")
		os.Exit(1)
	}

	cfg, err := configs.Load(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create logger:", err)
		os.Exit(2)
	}
	goose.SetLogger(logger)

	driver := cfg.Store.Driver()
	sqlDriver, ok := sqlDrivers[driver]
	if !ok {
		logger.WithField("protocol", cfg.Store.Protocol).Error("Store has no schema to migrate")
		os.Exit(2)
	}

	db, err := sql.Open(sqlDriver, cfg.Store.DSN())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(3)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("Failed to ping database")
		os.Exit(3)
	}

	logger.WithField("table", cfg.Store.Table).Info("Running database migrations...")
	if err := migrations.Up(db, driver, cfg.Store.Table); err != nil {
		logger.WithError(err).Error("Goose migration failed")
		os.Exit(4)
	}

	logger.Info("Migrations completed successfully")
}
