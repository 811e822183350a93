// Package main provides the entrypoint for the status API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/riverwatch/riverwatch/internal/api"
	"github.com/riverwatch/riverwatch/internal/api/middleware"
	"github.com/riverwatch/riverwatch/internal/config"
	"github.com/riverwatch/riverwatch/internal/database"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/provider/resilience"
	"github.com/riverwatch/riverwatch/internal/station"
	"github.com/riverwatch/riverwatch/internal/telemetry"
	"github.com/riverwatch/riverwatch/internal/warehouse"
	"github.com/riverwatch/riverwatch/internal/zone"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "riverwatch-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting status API")

	cfg := config.Load(log)

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	repo := warehouse.NewPostgresRepository(pool)

	stations, err := station.Load(cfg.StationsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StationsPath).Msg("failed to load station registry")
	}
	log.Info().Int("stations", len(stations.Stations())).Msg("station registry loaded")

	zones, err := zone.Load(cfg.ZonesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ZonesPath).Msg("failed to load zones")
	}
	log.Info().Int("zones", len(zones)).Msg("zones loaded")

	cache := monitor.NewCache(repo, log)
	if err := cache.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial staleness cache refresh failed")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Store:       repo,
		Cache:       cache,
		Feeds:       resilience.GlobalRegistry,
		Stations:    stations,
		Zones:       zones,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
