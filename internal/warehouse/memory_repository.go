package warehouse

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/riverwatch/riverwatch/internal/analysis"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/reading"
)

// MemoryRepository is an in-memory Repository for tests and local
// development. It enforces the same conflict semantics as the Postgres
// implementation.
type MemoryRepository struct {
	mu       sync.RWMutex
	readings map[string]reading.Reading // site|param|time
	state    map[string]monitor.Entry   // site|param
	events   map[string]analysis.FloodEvent
	derived  map[string][]analysis.FloodEvent
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		readings: make(map[string]reading.Reading),
		state:    make(map[string]monitor.Entry),
		events:   make(map[string]analysis.FloodEvent),
		derived:  make(map[string][]analysis.FloodEvent),
	}
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(_ context.Context) error { return nil }

func readingKey(siteCode, parameterCode string, at time.Time) string {
	return siteCode + "|" + parameterCode + "|" + at.UTC().Format(time.RFC3339Nano)
}

func stateKey(siteCode, parameterCode string) string {
	return siteCode + "|" + parameterCode
}

func eventKey(siteCode string, crest time.Time) string {
	return siteCode + "|" + crest.UTC().Format(time.RFC3339Nano)
}

// StoreReadings inserts readings, ignoring duplicates.
func (r *MemoryRepository) StoreReadings(_ context.Context, readings []reading.Reading) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, rd := range readings {
		k := readingKey(rd.SiteCode, rd.ParameterCode, rd.Time)
		if _, exists := r.readings[k]; exists {
			continue
		}
		r.readings[k] = rd
		inserted++
	}
	return inserted, nil
}

// LatestReading returns the most recent reading for a series.
func (r *MemoryRepository) LatestReading(_ context.Context, siteCode, parameterCode string) (*reading.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *reading.Reading
	for _, rd := range r.readings {
		if rd.SiteCode != siteCode || rd.ParameterCode != parameterCode {
			continue
		}
		if latest == nil || rd.Time.After(latest.Time) {
			rd := rd
			latest = &rd
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// LatestReadingTime returns max(reading time) for a series, or nil.
func (r *MemoryRepository) LatestReadingTime(ctx context.Context, siteCode, parameterCode string) (*time.Time, error) {
	latest, err := r.LatestReading(ctx, siteCode, parameterCode)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	t := latest.Time.UTC()
	return &t, nil
}

// ReadingsBetween returns a series slice in ascending time order.
func (r *MemoryRepository) ReadingsBetween(_ context.Context, siteCode, parameterCode string, start, end time.Time) ([]reading.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var readings []reading.Reading
	for _, rd := range r.readings {
		if rd.SiteCode != siteCode || rd.ParameterCode != parameterCode {
			continue
		}
		if rd.Time.Before(start) || rd.Time.After(end) {
			continue
		}
		readings = append(readings, rd)
	}
	sort.Slice(readings, func(i, j int) bool { return readings[i].Time.Before(readings[j].Time) })
	return readings, nil
}

// MonitoringState loads every monitoring-state entry.
func (r *MemoryRepository) MonitoringState(_ context.Context) ([]monitor.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]monitor.Entry, 0, len(r.state))
	for _, entry := range r.state {
		entries = append(entries, entry)
	}
	return entries, nil
}

// RecordPollSuccess upserts the entry for a series, resetting failures.
func (r *MemoryRepository) RecordPollSuccess(_ context.Context, entry monitor.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ConsecutiveFailures = 0
	r.state[stateKey(entry.SiteCode, entry.ParameterCode)] = entry
	return nil
}

// RecordPollFailure increments the failure count and downgrades status.
func (r *MemoryRepository) RecordPollFailure(_ context.Context, siteCode, parameterCode string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := stateKey(siteCode, parameterCode)
	entry, ok := r.state[k]
	if !ok {
		entry = monitor.Entry{SiteCode: siteCode, ParameterCode: parameterCode}
	}
	entry.ConsecutiveFailures++
	entry.LastPollAttempt = &at
	entry.Status = monitor.StatusForFailures(entry.ConsecutiveFailures)
	r.state[k] = entry
	return entry.ConsecutiveFailures, nil
}

// StoreEvents inserts source flood events, ignoring duplicates.
func (r *MemoryRepository) StoreEvents(_ context.Context, events []analysis.FloodEvent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, event := range events {
		k := eventKey(event.SiteCode, event.CrestTime)
		if _, exists := r.events[k]; exists {
			continue
		}
		r.events[k] = event
		inserted++
	}
	return inserted, nil
}

// Events returns the source events for a site in crest order.
func (r *MemoryRepository) Events(_ context.Context, siteCode string) ([]analysis.FloodEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []analysis.FloodEvent
	for _, event := range r.events {
		if event.SiteCode == siteCode {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CrestTime.Before(events[j].CrestTime) })
	return events, nil
}

// ClearDerived removes derived analysis records for a site.
func (r *MemoryRepository) ClearDerived(_ context.Context, siteCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.derived, siteCode)
	return nil
}

// StoreDerived appends derived events for their sites.
func (r *MemoryRepository) StoreDerived(_ context.Context, events []analysis.FloodEvent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range events {
		r.derived[event.SiteCode] = append(r.derived[event.SiteCode], event)
	}
	return len(events), nil
}

// Derived returns stored derived events for a site, for inspection in tests.
func (r *MemoryRepository) Derived(siteCode string) []analysis.FloodEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]analysis.FloodEvent(nil), r.derived[siteCode]...)
}

// Observations pivots stage and discharge readings into analysis rows.
func (r *MemoryRepository) Observations(ctx context.Context, siteCode string, start, end time.Time) ([]analysis.Observation, error) {
	stage, err := r.ReadingsBetween(ctx, siteCode, reading.ParamGageHeight, start, end)
	if err != nil {
		return nil, err
	}
	discharge, err := r.ReadingsBetween(ctx, siteCode, reading.ParamDischarge, start, end)
	if err != nil {
		return nil, err
	}

	byTime := make(map[time.Time]*analysis.Observation)
	for _, rd := range stage {
		v := rd.Value
		byTime[rd.Time] = &analysis.Observation{Time: rd.Time, StageFt: &v}
	}
	for _, rd := range discharge {
		v := rd.Value
		obs, ok := byTime[rd.Time]
		if !ok {
			obs = &analysis.Observation{Time: rd.Time}
			byTime[rd.Time] = obs
		}
		obs.DischargeCfs = &v
	}

	observations := make([]analysis.Observation, 0, len(byTime))
	for _, obs := range byTime {
		observations = append(observations, *obs)
	}
	sort.Slice(observations, func(i, j int) bool { return observations[i].Time.Before(observations[j].Time) })
	return observations, nil
}
