// Package main provides the entrypoint for the polling daemon. The daemon
// fills any acquisition gap left by downtime, then polls every feed on a
// fixed interval and keeps the staleness cache current. A small HTTP server
// exposes liveness and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/riverwatch/riverwatch/internal/backfill"
	"github.com/riverwatch/riverwatch/internal/config"
	"github.com/riverwatch/riverwatch/internal/database"
	"github.com/riverwatch/riverwatch/internal/ingest/cwms"
	"github.com/riverwatch/riverwatch/internal/ingest/iem"
	"github.com/riverwatch/riverwatch/internal/ingest/nwis"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/poller"
	"github.com/riverwatch/riverwatch/internal/station"
	"github.com/riverwatch/riverwatch/internal/telemetry"
	"github.com/riverwatch/riverwatch/internal/warehouse"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "riverwatch-daemon"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting polling daemon")

	cfg := config.Load(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	repo := warehouse.NewPostgresRepository(pool)

	stations, err := station.Load(cfg.StationsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StationsPath).Msg("failed to load station registry")
	}
	log.Info().
		Int("stations", len(stations.Stations())).
		Int("structures", len(stations.Structures())).
		Int("weather_stations", len(stations.WeatherStations())).
		Msg("station registry loaded")

	nwisClient := nwis.NewClient(nwis.ClientConfig{Logger: log})
	cwmsClient := cwms.NewClient(cwms.ClientConfig{})
	iemClient := iem.NewClient(iem.ClientConfig{})

	cache := monitor.NewCache(repo, log)
	if err := cache.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial staleness cache refresh failed")
	}

	// Catch up on whatever the daemon missed while it was down before
	// entering the steady-state poll loop.
	engine := backfill.NewEngine(nwisClient, repo, backfill.NewStateStore(cfg.StatePath),
		backfill.DefaultConfig(), nil, log)
	if err := engine.FillGaps(ctx, stations.SiteCodes()); err != nil {
		log.Error().Err(err).Msg("startup gap fill failed")
	}

	p := poller.New(stations, nwisClient, cwmsClient, iemClient, repo, cache,
		poller.NewMetrics(), poller.Config{
			Interval:    cfg.PollInterval,
			Concurrency: cfg.PollConcurrency,
		}, nil, log)

	server := healthServer(cfg.Port, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx)
	}()

	if err := <-errCh; err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("poller stopped unexpectedly")
	}

	log.Info().Msg("shutting down daemon")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("daemon stopped")
}

// healthServer starts the liveness and metrics listener.
func healthServer(port string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	return server
}
