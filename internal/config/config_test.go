package config_test

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/riverwatch/riverwatch/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load(zerolog.New(io.Discard))

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.DefaultStationsPath, cfg.StationsPath)
	assert.Equal(t, config.DefaultZonesPath, cfg.ZonesPath)
	assert.Equal(t, config.DefaultStatePath, cfg.StatePath)
	assert.Equal(t, config.DefaultPollInterval, cfg.PollInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("POLL_CONCURRENCY", "8")
	t.Setenv("STATIONS_FILE", "/etc/riverwatch/stations.toml")

	cfg := config.Load(zerolog.New(io.Discard))

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 8, cfg.PollConcurrency)
	assert.Equal(t, "/etc/riverwatch/stations.toml", cfg.StationsPath)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "not-a-duration")
	t.Setenv("POLL_CONCURRENCY", "many")

	cfg := config.Load(zerolog.New(io.Discard))

	assert.Equal(t, config.DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, 0, cfg.PollConcurrency)
}
