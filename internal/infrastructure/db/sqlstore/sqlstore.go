// Package sqlstore persists inventory records and user accounts in SQLite or
// MySQL through sqlx.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"

	defaultTimeout = 10 * time.Second
)

var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS inventory_records (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			reference      TEXT NOT NULL,
			serial         TEXT NOT NULL,
			status         TEXT NOT NULL,
			stocked_by     TEXT NOT NULL DEFAULT '',
			installed_by   TEXT NOT NULL DEFAULT '',
			uninstalled_by TEXT NOT NULL DEFAULT '',
			stocked_at     DATETIME,
			dispatched_at  DATETIME,
			installed_at   DATETIME,
			uninstalled_at DATETIME,
			client         TEXT NOT NULL DEFAULT '',
			UNIQUE (reference, serial)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_records_client ON inventory_records (client)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			role     TEXT NOT NULL,
			password TEXT NOT NULL,
			client   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS scan_events (
			id          TEXT PRIMARY KEY,
			reference   TEXT NOT NULL,
			serial      TEXT NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status   TEXT NOT NULL,
			action      TEXT NOT NULL,
			actor       TEXT NOT NULL DEFAULT '',
			client      TEXT NOT NULL DEFAULT '',
			occurred_at DATETIME NOT NULL
		)`,
	},
	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS inventory_records (
			id             BIGINT AUTO_INCREMENT PRIMARY KEY,
			reference      VARCHAR(191) NOT NULL,
			serial         VARCHAR(191) NOT NULL,
			status         VARCHAR(32) NOT NULL,
			stocked_by     VARCHAR(255) NOT NULL DEFAULT '',
			installed_by   VARCHAR(255) NOT NULL DEFAULT '',
			uninstalled_by VARCHAR(255) NOT NULL DEFAULT '',
			stocked_at     DATETIME(6) NULL,
			dispatched_at  DATETIME(6) NULL,
			installed_at   DATETIME(6) NULL,
			uninstalled_at DATETIME(6) NULL,
			client         VARCHAR(191) NOT NULL DEFAULT '',
			UNIQUE KEY uq_inventory_records_key (reference, serial),
			KEY idx_inventory_records_client (client)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(191) PRIMARY KEY,
			role     VARCHAR(32) NOT NULL,
			password VARCHAR(255) NOT NULL,
			client   VARCHAR(191) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS scan_events (
			id          CHAR(36) PRIMARY KEY,
			reference   VARCHAR(191) NOT NULL,
			serial      VARCHAR(191) NOT NULL,
			from_status VARCHAR(32) NOT NULL DEFAULT '',
			to_status   VARCHAR(32) NOT NULL,
			action      VARCHAR(32) NOT NULL,
			actor       VARCHAR(255) NOT NULL DEFAULT '',
			client      VARCHAR(191) NOT NULL DEFAULT '',
			occurred_at DATETIME(6) NOT NULL
		)`,
	},
}

// Config captures the settings for opening a SQL database.
type Config struct {
	Driver  string
	DSN     string
	Timeout time.Duration
}

// Open connects, verifies connectivity with a ping and creates missing tables.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	schema, ok := schemas[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	dsn := cfg.DSN
	if cfg.Driver == DriverMySQL {
		var err error
		if dsn, err = normalizeMySQLDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// A single writer connection avoids SQLITE_BUSY under concurrent scans.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", cfg.Driver, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s migrate: %w", cfg.Driver, err)
		}
	}
	return db, nil
}

// normalizeMySQLDSN forces DATETIME columns to scan into time.Time in UTC,
// whatever the operator put in the DSN.
func normalizeMySQLDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN(), nil
}
