// Package migrations embeds the candle table schema for every supported
// database and applies it with goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/navid-fn/radar/internal/storage/models"
)

// TableEnv is the variable the SQL files read the candle table name from.
const TableEnv = "RADAR_CANDLE_TABLE"

//go:embed sql
var embedMigrations embed.FS

// goose keeps its base FS and dialect in package globals.
var mu sync.Mutex

// Dialect maps a store driver name to the goose dialect and migration directory.
func Dialect(driver string) (string, error) {
	switch driver {
	case "mysql", "postgres", "clickhouse":
		return driver, nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// Up applies every pending migration for driver, creating the candle table
// named table.
func Up(db *sql.DB, driver, table string) error {
	dialect, err := Dialect(driver)
	if err != nil {
		return err
	}
	if table == "" {
		table = models.DefaultTable
	}
	if !models.ValidTableName(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	mu.Lock()
	defer mu.Unlock()

	if err := os.Setenv(TableEnv, table); err != nil {
		return err
	}
	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose: set dialect: %w", err)
	}
	if err := goose.Up(db, path.Join("sql", dialect)); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
