package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/reading"
)

// Default engine tuning. The instantaneous endpoint serves roughly 120 days
// of history; anything older has to come from the daily-values endpoint.
const (
	DefaultEarliestYear      = 1939
	DefaultInstantWindowDays = 120
	DefaultChunkPause        = 2 * time.Second
)

// GaugeSource fetches historical series at two resolutions.
type GaugeSource interface {
	FetchSeries(ctx context.Context, sites []string, period string) ([]reading.Reading, error)
	FetchDaily(ctx context.Context, sites []string, start, end time.Time) ([]reading.Reading, error)
}

// ReadingStore is the warehouse surface the engine needs.
type ReadingStore interface {
	StoreReadings(ctx context.Context, readings []reading.Reading) (int, error)
	LatestReadingTime(ctx context.Context, siteCode, parameterCode string) (*time.Time, error)
}

// Config tunes the strategy engine.
type Config struct {
	// EarliestYear is where a cold-start daily backfill begins.
	EarliestYear int
	// InstantWindowDays is the longest range the high-resolution endpoint
	// will serve.
	InstantWindowDays int
	// ChunkPause is the delay between year chunks, to stay polite with the
	// upstream API.
	ChunkPause time.Duration
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		EarliestYear:      DefaultEarliestYear,
		InstantWindowDays: DefaultInstantWindowDays,
		ChunkPause:        DefaultChunkPause,
	}
}

// Engine decides, per site and per gap, which resolution to request, and
// advances the resumable state cursor after every completed chunk.
type Engine struct {
	source GaugeSource
	store  ReadingStore
	states *StateStore
	cfg    Config
	clock  clockwork.Clock
	logger zerolog.Logger
}

// NewEngine wires a strategy engine.
func NewEngine(source GaugeSource, store ReadingStore, states *StateStore, cfg Config, clock clockwork.Clock, logger zerolog.Logger) *Engine {
	if cfg.EarliestYear == 0 {
		cfg.EarliestYear = DefaultEarliestYear
	}
	if cfg.InstantWindowDays == 0 {
		cfg.InstantWindowDays = DefaultInstantWindowDays
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		source: source,
		store:  store,
		states: states,
		cfg:    cfg,
		clock:  clock,
		logger: logger.With().Str("component", "backfill").Logger(),
	}
}

// RunHistorical performs the two-phase historical load: daily values
// year-by-year from the earliest year of record, then the full
// high-resolution window. The state cursor is persisted after every year so
// a restart resumes at the next incomplete year.
func (e *Engine) RunHistorical(ctx context.Context, sites []string) error {
	state, err := e.states.Load()
	if err != nil {
		return err
	}

	if !state.DailyDone {
		if err := e.runDailyYears(ctx, sites, &state); err != nil {
			return err
		}
	}

	if !state.InstantDone {
		period := fmt.Sprintf("P%dD", e.cfg.InstantWindowDays)
		stored, err := e.fetchAndStore(ctx, func(ctx context.Context) ([]reading.Reading, error) {
			return e.source.FetchSeries(ctx, sites, period)
		})
		if err != nil {
			return fmt.Errorf("instantaneous backfill: %w", err)
		}
		e.logger.Info().Int("readings", stored).Str("period", period).Msg("instantaneous backfill complete")

		state.InstantDone = true
		now := e.clock.Now().UTC()
		state.LastUpdate = &now
		if err := e.states.Save(state); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) runDailyYears(ctx context.Context, sites []string, state *State) error {
	startYear := e.cfg.EarliestYear
	if state.LastDailyYear != nil {
		startYear = *state.LastDailyYear + 1
	}
	currentYear := e.clock.Now().UTC().Year()

	for year := startYear; year <= currentYear; year++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

		stored, err := e.fetchAndStore(ctx, func(ctx context.Context) ([]reading.Reading, error) {
			return e.source.FetchDaily(ctx, sites, start, end)
		})
		if err != nil {
			return fmt.Errorf("daily backfill year %d: %w", year, err)
		}
		e.logger.Info().Int("year", year).Int("readings", stored).Msg("daily year complete")

		y := year
		state.LastDailyYear = &y
		if err := e.states.Save(*state); err != nil {
			return err
		}

		if year < currentYear && e.cfg.ChunkPause > 0 {
			e.clock.Sleep(e.cfg.ChunkPause)
		}
	}

	state.DailyDone = true
	return e.states.Save(*state)
}

// FillGaps inspects each site's freshest stored reading and closes the gap
// to now with the cheapest adequate request. Failures are logged per site
// and never abort the run.
func (e *Engine) FillGaps(ctx context.Context, sites []string) error {
	now := e.clock.Now().UTC()

	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.fillSiteGap(ctx, site, now); err != nil {
			e.logger.Warn().Err(err).Str("site", site).Msg("gap fill failed, continuing")
		}
	}
	return nil
}

func (e *Engine) fillSiteGap(ctx context.Context, site string, now time.Time) error {
	latest, err := e.store.LatestReadingTime(ctx, site, reading.ParamGageHeight)
	if err != nil {
		return fmt.Errorf("latest reading time: %w", err)
	}

	window := time.Duration(e.cfg.InstantWindowDays) * 24 * time.Hour

	switch {
	case latest == nil:
		// Cold start: grab the full high-resolution window right away.
		// The year-by-year daily load covers everything older.
		return e.fetchInstantWindow(ctx, site, e.cfg.InstantWindowDays)

	case now.Sub(*latest) < time.Hour:
		// Fresh enough for the poller to handle.
		return nil

	case now.Sub(*latest) <= window:
		days := int(now.Sub(*latest).Hours()/24) + 1
		return e.fetchInstantWindow(ctx, site, days)

	default:
		// Hybrid: the stretch beyond the high-resolution horizon comes in
		// at daily resolution, then the freshest window is re-fetched at
		// high resolution even though the edges overlap.
		if _, err := e.fetchAndStore(ctx, func(ctx context.Context) ([]reading.Reading, error) {
			return e.source.FetchDaily(ctx, []string{site}, latest.Add(-24*time.Hour), now.Add(-window))
		}); err != nil {
			return fmt.Errorf("daily segment: %w", err)
		}
		return e.fetchInstantWindow(ctx, site, e.cfg.InstantWindowDays)
	}
}

// fetchInstantWindow requests the last n days at high resolution, falling
// back once to the daily endpoint for the same window if that fails.
func (e *Engine) fetchInstantWindow(ctx context.Context, site string, days int) error {
	period := fmt.Sprintf("P%dD", days)
	stored, err := e.fetchAndStore(ctx, func(ctx context.Context) ([]reading.Reading, error) {
		return e.source.FetchSeries(ctx, []string{site}, period)
	})
	if err == nil {
		e.logger.Debug().Str("site", site).Str("period", period).Int("readings", stored).Msg("gap filled")
		return nil
	}

	e.logger.Warn().Err(err).Str("site", site).Str("period", period).
		Msg("high-resolution fetch failed, falling back to daily")

	now := e.clock.Now().UTC()
	_, err = e.fetchAndStore(ctx, func(ctx context.Context) ([]reading.Reading, error) {
		return e.source.FetchDaily(ctx, []string{site}, now.AddDate(0, 0, -days), now)
	})
	if err != nil {
		return fmt.Errorf("daily fallback: %w", err)
	}
	return nil
}

// fetchAndStore runs one fetch and persists the result. An upstream
// no-data response stores nothing and is not an error.
func (e *Engine) fetchAndStore(ctx context.Context, fetch func(context.Context) ([]reading.Reading, error)) (int, error) {
	readings, err := fetch(ctx)
	if err != nil {
		if ingest.IsNoData(err) {
			return 0, nil
		}
		return 0, err
	}
	return e.store.StoreReadings(ctx, readings)
}
