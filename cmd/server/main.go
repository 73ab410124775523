// @title        QR Inventory API
// @version      1.0
// @description  Tracks serialized items through EN ALMACEN, DESPACHADO, INSTALADO and DESINSTALADO by scanning REFERENCIA|SERIAL QR codes.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/qrstock/inventory-api/internal/api"
	"github.com/qrstock/inventory-api/internal/api/metrics"
	"github.com/qrstock/inventory-api/internal/core/service"
	"github.com/qrstock/inventory-api/internal/infrastructure/db"
	redisstore "github.com/qrstock/inventory-api/internal/infrastructure/db/redis"
	"github.com/qrstock/inventory-api/internal/infrastructure/http/handlers"
	"github.com/qrstock/inventory-api/internal/infrastructure/queue"
	"github.com/qrstock/inventory-api/internal/pkg/config"
	"github.com/qrstock/inventory-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "inventory-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	// Initialize backing store
	store, err := db.Open(ctx, cfg, loc, logger.Component("store"))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	log.Info().Str("driver", store.Driver).Msg("store opened")

	checks := map[string]handlers.PingFunc{"store": store.Ping}

	// Start per-key scan serializer
	serializer := queue.NewSerializer(cfg.ScanWorkers, logger.Component("queue"), queue.WithDepthGauge(metrics.ScanQueueDepth))
	serializer.Start()

	scanOpts := []service.ScanOption{
		service.WithSerializer(serializer),
		service.WithLocation(loc),
	}

	// Initialize Redis (optional)
	if cfg.Redis.Enabled {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect redis")
		}
		defer rdb.Close()

		scanOpts = append(scanOpts,
			service.WithLocker(redisstore.NewKeyLocker(rdb, cfg.Redis.LockTTL)),
			service.WithReplayCache(redisstore.NewReplayCache(rdb)),
		)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	// Initialize services
	scanService := service.NewScanService(store.Records, logger.Component("scan"), scanOpts...)
	authService := service.NewAuthService(store.Credentials, service.AuthOptions{
		Superadmins:   cfg.Superadmins(),
		HashPasswords: cfg.Auth.HashPasswords,
		JWTSecret:     cfg.Auth.JWTSecret,
		TokenTTL:      cfg.Auth.TokenTTL,
	}, logger.Component("auth"))

	if cfg.Auth.BootstrapPassword != "" {
		if err := authService.EnsureSuperadmins(ctx, cfg.Auth.BootstrapPassword); err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap superadmins")
		}
	}

	e := api.NewRouter(api.Dependencies{
		Scans:     scanService,
		Auth:      authService,
		Location:  loc,
		JWTSecret: cfg.Auth.JWTSecret,
		Checks:    checks,
		StaticDir: cfg.StaticDir,
		Logger:    logger.Component("http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	serializer.Stop()
	if err := store.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("store close")
	}
	log.Info().Msg("stopped")
}
