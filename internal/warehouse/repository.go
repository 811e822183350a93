// Package warehouse persists readings, monitoring state, and flood events.
// All reading writes are idempotent: the store ignores conflicts on
// (site, parameter, reading time), so re-importing an overlapping range
// never duplicates or rewrites a value.
package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/riverwatch/riverwatch/internal/analysis"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/reading"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ReadingRepository stores and queries canonical readings.
type ReadingRepository interface {
	// StoreReadings inserts readings, ignoring duplicates. Returns the
	// number of rows actually inserted.
	StoreReadings(ctx context.Context, readings []reading.Reading) (int, error)

	// LatestReading returns the most recent reading for a series, or
	// ErrNotFound.
	LatestReading(ctx context.Context, siteCode, parameterCode string) (*reading.Reading, error)

	// LatestReadingTime returns max(reading_time) for a series, or nil
	// when the series has no readings.
	LatestReadingTime(ctx context.Context, siteCode, parameterCode string) (*time.Time, error)

	// ReadingsBetween returns a series slice in ascending time order.
	ReadingsBetween(ctx context.Context, siteCode, parameterCode string, start, end time.Time) ([]reading.Reading, error)
}

// StateRepository persists per-series monitoring state.
type StateRepository interface {
	// MonitoringState loads every monitoring-state row.
	MonitoringState(ctx context.Context) ([]monitor.Entry, error)

	// RecordPollSuccess upserts the row for a series after a successful
	// poll, resetting its failure count.
	RecordPollSuccess(ctx context.Context, entry monitor.Entry) error

	// RecordPollFailure increments the failure count for a series and
	// returns the new count.
	RecordPollFailure(ctx context.Context, siteCode, parameterCode string, at time.Time) (int, error)
}

// EventRepository persists flood events and their derived analysis.
type EventRepository interface {
	// StoreEvents inserts source flood events, ignoring duplicates on
	// (site, crest time). Returns the number inserted.
	StoreEvents(ctx context.Context, events []analysis.FloodEvent) (int, error)

	// Events returns the source events for a site in crest order.
	Events(ctx context.Context, siteCode string) ([]analysis.FloodEvent, error)

	// ClearDerived removes derived analysis records for a site ahead of
	// a re-analysis run.
	ClearDerived(ctx context.Context, siteCode string) error

	// StoreDerived inserts derived events with their precursor analysis.
	StoreDerived(ctx context.Context, events []analysis.FloodEvent) (int, error)

	// Observations returns the stage/discharge pivot for an analysis
	// window in ascending time order.
	Observations(ctx context.Context, siteCode string, start, end time.Time) ([]analysis.Observation, error)
}

// Repository is the full warehouse surface.
type Repository interface {
	ReadingRepository
	StateRepository
	EventRepository

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error
}
