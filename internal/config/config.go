// Package config loads daemon and API settings from the environment. A
// local .env file is honored when present; real environment variables win.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Defaults for file locations and polling cadence.
const (
	DefaultStationsPath = "config/stations.toml"
	DefaultZonesPath    = "config/zones.toml"
	DefaultStatePath    = ".ingest-state.json"
	DefaultPollInterval = 15 * time.Minute
)

// Config holds settings shared by the daemon, API, and backfill runner.
type Config struct {
	Port         string
	StationsPath string
	ZonesPath    string
	StatePath    string

	PollInterval    time.Duration
	PollConcurrency int
}

// Load reads .env if present and builds the config from the environment.
func Load(logger zerolog.Logger) Config {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Msg("could not read .env file")
		}
	}

	return Config{
		Port:            envOrDefault("APP_PORT", "8080"),
		StationsPath:    envOrDefault("STATIONS_FILE", DefaultStationsPath),
		ZonesPath:       envOrDefault("ZONES_FILE", DefaultZonesPath),
		StatePath:       envOrDefault("INGEST_STATE_FILE", DefaultStatePath),
		PollInterval:    envDuration("POLL_INTERVAL", DefaultPollInterval),
		PollConcurrency: envInt("POLL_CONCURRENCY", 0),
	}
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func envInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
