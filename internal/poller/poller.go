// Package poller runs the fixed-interval acquisition loop: every cycle it
// polls each configured gauge, structure, and weather station, persists the
// readings, and updates per-series health state. Stations are isolated from
// each other — one bad feed never blocks the rest of the cycle.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/ingest/iem"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/reading"
	"github.com/riverwatch/riverwatch/internal/station"
)

// Default loop tuning.
const (
	DefaultInterval           = 15 * time.Minute
	DefaultConcurrency        = 4
	DefaultGaugePeriod        = "PT2H"
	DefaultStructureHours     = 6
	DefaultStalenessThreshold = time.Hour
)

// GaugeFeed returns the freshest reading per series for the given sites.
type GaugeFeed interface {
	FetchLatest(ctx context.Context, sites []string, period string) ([]reading.Reading, error)
}

// StructureFeed discovers and fetches structure elevation timeseries.
type StructureFeed interface {
	DiscoverPoolElevation(ctx context.Context, office, locationBase string) (string, error)
	DiscoverTailwaterElevation(ctx context.Context, office, locationBase string) (string, error)
	FetchRecent(ctx context.Context, timeseriesID, office string, hours int, now time.Time) ([]reading.Reading, error)
}

// WeatherFeed returns the current observation for a weather station.
type WeatherFeed interface {
	FetchCurrent(ctx context.Context, stationID string) (*iem.Observation, error)
}

// Store is the warehouse surface the loop needs.
type Store interface {
	StoreReadings(ctx context.Context, readings []reading.Reading) (int, error)
	RecordPollSuccess(ctx context.Context, entry monitor.Entry) error
	RecordPollFailure(ctx context.Context, siteCode, parameterCode string, at time.Time) (int, error)
}

// Config tunes the polling loop.
type Config struct {
	// Interval is the fixed cycle cadence. The sleep between cycles is
	// interval minus elapsed cycle time, clamped at zero.
	Interval time.Duration
	// Concurrency is the station fan-out width within a cycle.
	Concurrency int
	// GaugePeriod is the lookback window passed to the gauge feed.
	GaugePeriod string
	// StructureHours is the lookback for structure elevation fetches.
	StructureHours int
	// StalenessThreshold is recorded on every series so the tracker can
	// judge freshness later.
	StalenessThreshold time.Duration
}

// DefaultConfig returns the standard loop tuning.
func DefaultConfig() Config {
	return Config{
		Interval:           DefaultInterval,
		Concurrency:        DefaultConcurrency,
		GaugePeriod:        DefaultGaugePeriod,
		StructureHours:     DefaultStructureHours,
		StalenessThreshold: DefaultStalenessThreshold,
	}
}

// Poller is the acquisition orchestrator.
type Poller struct {
	registry *station.Registry
	gauges   GaugeFeed
	cwms     StructureFeed
	weather  WeatherFeed
	store    Store
	cache    *monitor.Cache
	metrics  *Metrics
	cfg      Config
	clock    clockwork.Clock
	logger   zerolog.Logger

	mu         sync.Mutex
	discovered map[string][2]string // structure location -> {pool tsid, tailwater tsid}
}

// New wires a poller. A nil clock falls back to the wall clock; nil metrics
// fall back to unregistered instruments.
func New(registry *station.Registry, gauges GaugeFeed, cwms StructureFeed, weather WeatherFeed,
	store Store, cache *monitor.Cache, metrics *Metrics, cfg Config, clock clockwork.Clock, logger zerolog.Logger) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.GaugePeriod == "" {
		cfg.GaugePeriod = DefaultGaugePeriod
	}
	if cfg.StructureHours == 0 {
		cfg.StructureHours = DefaultStructureHours
	}
	if cfg.StalenessThreshold == 0 {
		cfg.StalenessThreshold = DefaultStalenessThreshold
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = NewMetricsForTesting()
	}
	return &Poller{
		registry:   registry,
		gauges:     gauges,
		cwms:       cwms,
		weather:    weather,
		store:      store,
		cache:      cache,
		metrics:    metrics,
		cfg:        cfg,
		clock:      clock,
		logger:     logger.With().Str("component", "poller").Logger(),
		discovered: make(map[string][2]string),
	}
}

// Run executes cycles at the configured interval until the context is
// cancelled. A slow cycle shortens the following sleep rather than shifting
// the schedule.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.cfg.Interval).
		Int("stations", len(p.registry.Stations())).
		Msg("polling loop started")

	for {
		start := p.clock.Now()
		p.Cycle(ctx)

		sleep := p.cfg.Interval - p.clock.Now().Sub(start)
		if sleep < 0 {
			sleep = 0
		}

		select {
		case <-ctx.Done():
			p.logger.Info().Msg("polling loop stopped")
			return ctx.Err()
		case <-p.clock.After(sleep):
		}
	}
}

// task is one isolated unit of a cycle: a single fetch covering one or more
// (site, parameter) series.
type task struct {
	feed   string
	site   string
	params []string
	fetch  func(ctx context.Context) ([]reading.Reading, error)
}

// Cycle polls every configured entity once. Errors are recorded per series
// and never abort the cycle.
func (p *Poller) Cycle(ctx context.Context) {
	start := p.clock.Now()
	tasks := p.buildTasks()

	taskCh := make(chan task, len(tasks))
	stored := make(chan int, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				select {
				case <-ctx.Done():
					return
				default:
					stored <- p.runTask(ctx, t)
				}
			}
		}()
	}

	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)
	wg.Wait()
	close(stored)

	total := 0
	for n := range stored {
		total += n
	}

	if err := p.cache.Refresh(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("staleness cache refresh failed")
	}

	now := p.clock.Now().UTC()
	elapsed := p.clock.Now().Sub(start)

	p.metrics.CyclesTotal.Inc()
	p.metrics.ReadingsStored.Add(float64(total))
	p.metrics.CycleDuration.Observe(elapsed.Seconds())
	p.metrics.UnhealthySeries.Set(float64(len(p.cache.Unhealthy(now))))

	p.logger.Info().
		Int("tasks", len(tasks)).
		Int("readings_stored", total).
		Dur("elapsed", elapsed).
		Msg("poll cycle complete")
}

func (p *Poller) buildTasks() []task {
	var tasks []task

	for _, st := range p.registry.Stations() {
		site := st.SiteCode
		tasks = append(tasks, task{
			feed:   "nwis",
			site:   site,
			params: []string{reading.ParamGageHeight, reading.ParamDischarge},
			fetch: func(ctx context.Context) ([]reading.Reading, error) {
				return p.gauges.FetchLatest(ctx, []string{site}, p.cfg.GaugePeriod)
			},
		})
	}

	for _, s := range p.registry.Structures() {
		s := s
		tasks = append(tasks, task{
			feed:   "cwms",
			site:   s.CwmsLocation,
			params: []string{reading.ParamPoolElevation, reading.ParamTailwaterElevation},
			fetch: func(ctx context.Context) ([]reading.Reading, error) {
				return p.fetchStructure(ctx, s)
			},
		})
	}

	for _, w := range p.registry.WeatherStations() {
		id := w.ID
		tasks = append(tasks, task{
			feed:   "iem",
			site:   id,
			params: []string{reading.ParamPrecip},
			fetch: func(ctx context.Context) ([]reading.Reading, error) {
				obs, err := p.weather.FetchCurrent(ctx, id)
				if err != nil {
					return nil, err
				}
				r := iem.ToReading(*obs)
				if r == nil {
					return nil, ingest.ErrNoData
				}
				return []reading.Reading{*r}, nil
			},
		})
	}

	return tasks
}

func (p *Poller) fetchStructure(ctx context.Context, s station.Structure) ([]reading.Reading, error) {
	pool, tailwater, err := p.discoverStructure(ctx, s)
	if err != nil {
		return nil, err
	}

	now := p.clock.Now().UTC()
	readings, err := p.cwms.FetchRecent(ctx, pool, s.Office, p.cfg.StructureHours, now)
	if err != nil {
		return nil, fmt.Errorf("pool elevation: %w", err)
	}

	if tailwater != "" {
		tw, err := p.cwms.FetchRecent(ctx, tailwater, s.Office, p.cfg.StructureHours, now)
		if err != nil && !ingest.IsNoData(err) {
			return nil, fmt.Errorf("tailwater elevation: %w", err)
		}
		readings = append(readings, tw...)
	}
	return readings, nil
}

// discoverStructure resolves the pool and tailwater timeseries IDs for a
// structure, caching the result for the life of the process. A structure
// without a tailwater series is usable with pool only.
func (p *Poller) discoverStructure(ctx context.Context, s station.Structure) (pool, tailwater string, err error) {
	p.mu.Lock()
	cached, ok := p.discovered[s.CwmsLocation]
	p.mu.Unlock()
	if ok {
		return cached[0], cached[1], nil
	}

	pool, err = p.cwms.DiscoverPoolElevation(ctx, s.Office, s.CwmsLocation)
	if err != nil {
		return "", "", fmt.Errorf("discover pool: %w", err)
	}

	tailwater, err = p.cwms.DiscoverTailwaterElevation(ctx, s.Office, s.CwmsLocation)
	if err != nil {
		if !ingest.IsNoData(err) {
			return "", "", fmt.Errorf("discover tailwater: %w", err)
		}
		tailwater = ""
	}

	p.mu.Lock()
	p.discovered[s.CwmsLocation] = [2]string{pool, tailwater}
	p.mu.Unlock()
	return pool, tailwater, nil
}

// runTask executes one fetch, persists readings, and records per-series
// success or failure. Returns the number of readings stored.
func (p *Poller) runTask(ctx context.Context, t task) int {
	now := p.clock.Now().UTC()

	readings, err := t.fetch(ctx)
	if err != nil {
		outcome := "failure"
		if ingest.IsNoData(err) {
			outcome = "no_data"
		}
		p.metrics.PollRequests.WithLabelValues(t.feed, outcome).Inc()
		p.recordFailure(ctx, t, now, err)
		return 0
	}

	stored, err := p.store.StoreReadings(ctx, readings)
	if err != nil {
		p.metrics.PollRequests.WithLabelValues(t.feed, "failure").Inc()
		p.recordFailure(ctx, t, now, err)
		return 0
	}

	p.metrics.PollRequests.WithLabelValues(t.feed, "success").Inc()

	for _, param := range t.params {
		latest := latestFor(readings, param)
		if latest == nil {
			// Feed answered but this series had nothing; not a failure,
			// staleness will surface it if it persists.
			continue
		}
		entry := monitor.Entry{
			SiteCode:           latest.SiteCode,
			ParameterCode:      param,
			LatestReadingTime:  &latest.Time,
			LatestValue:        &latest.Value,
			StalenessThreshold: p.cfg.StalenessThreshold,
			Status:             monitor.StatusActive,
			LastPollAttempt:    &now,
		}
		if err := p.store.RecordPollSuccess(ctx, entry); err != nil {
			p.logger.Warn().Err(err).Str("site", t.site).Str("param", param).Msg("record poll success failed")
			continue
		}
		p.cache.Update(entry)
	}
	return stored
}

func (p *Poller) recordFailure(ctx context.Context, t task, now time.Time, cause error) {
	p.logger.Warn().Err(cause).Str("feed", t.feed).Str("site", t.site).Msg("poll failed")

	for _, param := range t.params {
		failures, err := p.store.RecordPollFailure(ctx, t.site, param, now)
		if err != nil {
			p.logger.Warn().Err(err).Str("site", t.site).Str("param", param).Msg("record poll failure failed")
			continue
		}
		entry, ok := p.cache.Get(t.site, param)
		if !ok {
			entry = monitor.Entry{SiteCode: t.site, ParameterCode: param, StalenessThreshold: p.cfg.StalenessThreshold}
		}
		entry.ConsecutiveFailures = failures
		entry.Status = monitor.StatusForFailures(failures)
		entry.LastPollAttempt = &now
		p.cache.Update(entry)
	}
}

func latestFor(readings []reading.Reading, parameterCode string) *reading.Reading {
	var filtered []reading.Reading
	for _, r := range readings {
		if r.ParameterCode == parameterCode {
			filtered = append(filtered, r)
		}
	}
	return reading.Latest(filtered)
}
