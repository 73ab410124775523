// Package db opens the backing store selected by STORE_DRIVER.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/qrstock/inventory-api/internal/core/ports"
	mongostore "github.com/qrstock/inventory-api/internal/infrastructure/db/mongo"
	"github.com/qrstock/inventory-api/internal/infrastructure/db/sheet"
	"github.com/qrstock/inventory-api/internal/infrastructure/db/sqlstore"
	"github.com/qrstock/inventory-api/internal/pkg/config"
)

// Store bundles the repositories of one backing store with its lifecycle.
type Store struct {
	Driver      string
	Records     ports.RecordRepository
	Credentials ports.CredentialRepository

	ping  func(context.Context) error
	close func(context.Context) error
}

// Ping checks that the backing store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the backing store.
func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}

// Open connects to the store named by cfg.Store.Driver. Spreadsheet dates are
// read and written in loc.
func Open(ctx context.Context, cfg *config.Config, loc *time.Location, log zerolog.Logger) (*Store, error) {
	switch cfg.Store.Driver {
	case config.StoreSheet:
		wb, err := sheet.Open(cfg.Store.SheetPath, loc, log.With().Str("store", "sheet").Logger())
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver:      cfg.Store.Driver,
			Records:     wb.Records(),
			Credentials: wb.Credentials(),
			ping:        wb.Ping,
			close:       func(context.Context) error { return wb.Close() },
		}, nil

	case config.StoreMongo:
		client, database, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		repos, err := mongostore.NewRepositories(ctx, database)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &Store{
			Driver:      cfg.Store.Driver,
			Records:     repos.Records,
			Credentials: repos.Credentials,
			ping:        func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:       client.Disconnect,
		}, nil

	case config.StoreSQLite, config.StoreMySQL:
		driver := sqlstore.DriverSQLite
		if cfg.Store.Driver == config.StoreMySQL {
			driver = sqlstore.DriverMySQL
		}
		sqlDB, err := sqlstore.Open(ctx, sqlstore.Config{Driver: driver, DSN: cfg.SQL.DSN})
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver:      cfg.Store.Driver,
			Records:     sqlstore.NewRecordRepository(sqlDB),
			Credentials: sqlstore.NewCredentialRepository(sqlDB),
			ping:        sqlDB.PingContext,
			close:       func(context.Context) error { return sqlDB.Close() },
		}, nil
	}
	return nil, fmt.Errorf("db: unsupported store driver %q", cfg.Store.Driver)
}
