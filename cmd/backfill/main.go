// Package main provides the historical ingestion runner. It performs the
// deep two-phase backfill (daily values back to the start of record, then a
// high-resolution recent window), imports the annual peak-flow archive, and
// re-derives precursor analysis for every flood event. The runner is
// resumable: progress is checkpointed so an interrupted run picks up where
// it stopped.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/riverwatch/riverwatch/internal/analysis"
	"github.com/riverwatch/riverwatch/internal/backfill"
	"github.com/riverwatch/riverwatch/internal/config"
	"github.com/riverwatch/riverwatch/internal/database"
	"github.com/riverwatch/riverwatch/internal/ingest/nwis"
	"github.com/riverwatch/riverwatch/internal/ingest/peakflow"
	"github.com/riverwatch/riverwatch/internal/station"
	"github.com/riverwatch/riverwatch/internal/warehouse"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "riverwatch-backfill").
		Str("version", Version).
		Logger()

	cfg := config.Load(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	repo := warehouse.NewPostgresRepository(pool)

	stations, err := station.Load(cfg.StationsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StationsPath).Msg("failed to load station registry")
	}

	engine := backfill.NewEngine(nwis.NewClient(nwis.ClientConfig{Logger: log}), repo,
		backfill.NewStateStore(cfg.StatePath), backfill.DefaultConfig(), nil, log)

	log.Info().Int("sites", len(stations.SiteCodes())).Msg("starting historical backfill")
	if err := engine.RunHistorical(ctx, stations.SiteCodes()); err != nil {
		log.Fatal().Err(err).Msg("historical backfill failed")
	}
	log.Info().Msg("historical backfill complete")

	importPeakEvents(ctx, stations, repo, log)
	analyzeEvents(ctx, stations, repo, log)
}

// importPeakEvents loads the annual peak-flow archive for every gauge with
// published flood thresholds and stores the crests that reached flood
// stage. Sites without thresholds have nothing to classify against.
func importPeakEvents(ctx context.Context, stations *station.Registry, repo warehouse.Repository, log zerolog.Logger) {
	client := peakflow.NewClient(peakflow.ClientConfig{})

	for _, st := range stations.Stations() {
		if st.Thresholds == nil {
			continue
		}

		records, err := client.Fetch(ctx, st.SiteCode)
		if err != nil {
			log.Error().Err(err).Str("site_code", st.SiteCode).Msg("peak-flow fetch failed")
			continue
		}

		events := peakflow.DeriveFloodEvents(records, *st.Thresholds)
		stored, err := repo.StoreEvents(ctx, events)
		if err != nil {
			log.Error().Err(err).Str("site_code", st.SiteCode).Msg("storing flood events failed")
			continue
		}

		log.Info().
			Str("site_code", st.SiteCode).
			Int("peaks", len(records)).
			Int("flood_events", len(events)).
			Int("stored", stored).
			Msg("peak-flow archive imported")
	}
}

// analyzeEvents re-derives the precursor analysis for every stored event.
func analyzeEvents(ctx context.Context, stations *station.Registry, repo warehouse.Repository, log zerolog.Logger) {
	analyzer := analysis.NewAnalyzer(repo, repo, analysis.DefaultConfig(), log)

	for _, st := range stations.Stations() {
		if st.Thresholds == nil {
			continue
		}

		derived, err := analyzer.AnalyzeSite(ctx, st.SiteCode)
		if err != nil {
			log.Error().Err(err).Str("site_code", st.SiteCode).Msg("event analysis failed")
			continue
		}
		log.Info().Str("site_code", st.SiteCode).Int("derived", derived).Msg("events analyzed")
	}
}
