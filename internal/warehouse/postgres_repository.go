package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riverwatch/riverwatch/internal/analysis"
	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/reading"
)

// PostgresRepository implements Repository backed by pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository using the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Ping verifies store connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// StoreReadings batch-inserts readings, ignoring conflicts on
// (site_code, parameter_code, reading_time).
func (r *PostgresRepository) StoreReadings(ctx context.Context, readings []reading.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rd := range readings {
		batch.Queue(`
			INSERT INTO gauge_readings (site_code, site_name, parameter_code, unit, value, reading_time, qualifier)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (site_code, parameter_code, reading_time) DO NOTHING`,
			rd.SiteCode, rd.SiteName, rd.ParameterCode, rd.Unit, rd.Value, rd.Time, rd.Qualifier,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range readings {
		tag, err := results.Exec()
		if err != nil {
			return inserted, &ingest.PersistenceError{Op: "insert reading", Err: err}
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// LatestReading returns the most recent reading for a series.
func (r *PostgresRepository) LatestReading(ctx context.Context, siteCode, parameterCode string) (*reading.Reading, error) {
	var rd reading.Reading
	err := r.pool.QueryRow(ctx, `
		SELECT site_code, site_name, parameter_code, unit, value, reading_time, qualifier
		FROM gauge_readings
		WHERE site_code = $1 AND parameter_code = $2
		ORDER BY reading_time DESC
		LIMIT 1`,
		siteCode, parameterCode,
	).Scan(&rd.SiteCode, &rd.SiteName, &rd.ParameterCode, &rd.Unit, &rd.Value, &rd.Time, &rd.Qualifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &ingest.PersistenceError{Op: "query latest reading", Err: err}
	}
	rd.Time = rd.Time.UTC()
	return &rd, nil
}

// LatestReadingTime returns max(reading_time) for a series, or nil.
func (r *PostgresRepository) LatestReadingTime(ctx context.Context, siteCode, parameterCode string) (*time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(reading_time)
		FROM gauge_readings
		WHERE site_code = $1 AND parameter_code = $2`,
		siteCode, parameterCode,
	).Scan(&latest)
	if err != nil {
		return nil, &ingest.PersistenceError{Op: "query latest reading time", Err: err}
	}
	if latest != nil {
		t := latest.UTC()
		latest = &t
	}
	return latest, nil
}

// ReadingsBetween returns a series slice in ascending time order.
func (r *PostgresRepository) ReadingsBetween(ctx context.Context, siteCode, parameterCode string, start, end time.Time) ([]reading.Reading, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT site_code, site_name, parameter_code, unit, value, reading_time, qualifier
		FROM gauge_readings
		WHERE site_code = $1 AND parameter_code = $2 AND reading_time BETWEEN $3 AND $4
		ORDER BY reading_time`,
		siteCode, parameterCode, start, end,
	)
	if err != nil {
		return nil, &ingest.PersistenceError{Op: "query readings", Err: err}
	}
	defer rows.Close()

	var readings []reading.Reading
	for rows.Next() {
		var rd reading.Reading
		if err := rows.Scan(&rd.SiteCode, &rd.SiteName, &rd.ParameterCode, &rd.Unit, &rd.Value, &rd.Time, &rd.Qualifier); err != nil {
			return nil, &ingest.PersistenceError{Op: "scan reading", Err: err}
		}
		rd.Time = rd.Time.UTC()
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

// MonitoringState loads every monitoring-state row.
func (r *PostgresRepository) MonitoringState(ctx context.Context) ([]monitor.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT site_code, parameter_code, latest_reading_time, latest_value,
		       staleness_threshold_minutes, status, last_poll_attempt, consecutive_failures
		FROM monitoring_state`)
	if err != nil {
		return nil, &ingest.PersistenceError{Op: "query monitoring state", Err: err}
	}
	defer rows.Close()

	var entries []monitor.Entry
	for rows.Next() {
		var entry monitor.Entry
		var thresholdMinutes int
		if err := rows.Scan(&entry.SiteCode, &entry.ParameterCode, &entry.LatestReadingTime, &entry.LatestValue,
			&thresholdMinutes, &entry.Status, &entry.LastPollAttempt, &entry.ConsecutiveFailures); err != nil {
			return nil, &ingest.PersistenceError{Op: "scan monitoring state", Err: err}
		}
		entry.StalenessThreshold = time.Duration(thresholdMinutes) * time.Minute
		if entry.LatestReadingTime != nil {
			t := entry.LatestReadingTime.UTC()
			entry.LatestReadingTime = &t
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RecordPollSuccess upserts the state row for a series, resetting failures.
func (r *PostgresRepository) RecordPollSuccess(ctx context.Context, entry monitor.Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO monitoring_state (site_code, parameter_code, latest_reading_time, latest_value,
		                              staleness_threshold_minutes, status, last_poll_attempt, consecutive_failures)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		ON CONFLICT (site_code, parameter_code) DO UPDATE SET
			latest_reading_time = EXCLUDED.latest_reading_time,
			latest_value = EXCLUDED.latest_value,
			staleness_threshold_minutes = EXCLUDED.staleness_threshold_minutes,
			status = EXCLUDED.status,
			last_poll_attempt = EXCLUDED.last_poll_attempt,
			consecutive_failures = 0`,
		entry.SiteCode, entry.ParameterCode, entry.LatestReadingTime, entry.LatestValue,
		int(entry.StalenessThreshold.Minutes()), entry.Status, entry.LastPollAttempt,
	)
	if err != nil {
		return &ingest.PersistenceError{Op: "record poll success", Err: err}
	}
	return nil
}

// RecordPollFailure increments the failure count and downgrades status.
func (r *PostgresRepository) RecordPollFailure(ctx context.Context, siteCode, parameterCode string, at time.Time) (int, error) {
	var failures int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO monitoring_state (site_code, parameter_code, status, last_poll_attempt, consecutive_failures)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (site_code, parameter_code) DO UPDATE SET
			last_poll_attempt = EXCLUDED.last_poll_attempt,
			consecutive_failures = monitoring_state.consecutive_failures + 1
		RETURNING consecutive_failures`,
		siteCode, parameterCode, monitor.StatusUnknown, at,
	).Scan(&failures)
	if err != nil {
		return 0, &ingest.PersistenceError{Op: "record poll failure", Err: err}
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE monitoring_state SET status = $3
		WHERE site_code = $1 AND parameter_code = $2`,
		siteCode, parameterCode, monitor.StatusForFailures(failures),
	)
	if err != nil {
		return failures, &ingest.PersistenceError{Op: "update status", Err: err}
	}
	return failures, nil
}

// StoreEvents inserts source flood events, ignoring duplicates on
// (site_code, crest_time).
func (r *PostgresRepository) StoreEvents(ctx context.Context, events []analysis.FloodEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(`
			INSERT INTO flood_events (site_code, crest_time, peak_stage_ft, severity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (site_code, crest_time) DO NOTHING`,
			event.SiteCode, event.CrestTime, event.PeakStageFt, event.Severity,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range events {
		tag, err := results.Exec()
		if err != nil {
			return inserted, &ingest.PersistenceError{Op: "insert flood event", Err: err}
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Events returns the source events for a site in crest order.
func (r *PostgresRepository) Events(ctx context.Context, siteCode string) ([]analysis.FloodEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT site_code, crest_time, peak_stage_ft, severity
		FROM flood_events
		WHERE site_code = $1
		ORDER BY crest_time`,
		siteCode,
	)
	if err != nil {
		return nil, &ingest.PersistenceError{Op: "query flood events", Err: err}
	}
	defer rows.Close()

	var events []analysis.FloodEvent
	for rows.Next() {
		var event analysis.FloodEvent
		if err := rows.Scan(&event.SiteCode, &event.CrestTime, &event.PeakStageFt, &event.Severity); err != nil {
			return nil, &ingest.PersistenceError{Op: "scan flood event", Err: err}
		}
		event.CrestTime = event.CrestTime.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

// ClearDerived removes derived analysis records for a site.
func (r *PostgresRepository) ClearDerived(ctx context.Context, siteCode string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM event_analysis WHERE site_code = $1`, siteCode)
	if err != nil {
		return &ingest.PersistenceError{Op: "clear derived events", Err: err}
	}
	return nil
}

// StoreDerived inserts derived events with their precursor analysis.
func (r *PostgresRepository) StoreDerived(ctx context.Context, events []analysis.FloodEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, event := range events {
		var windowStart, windowEnd *time.Time
		var totalRise, avgRate, maxRate *float64
		var durationHours *int
		if w := event.Precursor; w != nil {
			windowStart, windowEnd = &w.Start, &w.End
			totalRise, avgRate, maxRate = &w.TotalRiseFt, &w.AvgRiseRateFtPerDay, &w.MaxRiseRateFtPerDay
			durationHours = &w.RiseDurationHours
		}
		batch.Queue(`
			INSERT INTO event_analysis (site_code, crest_time, peak_stage_ft, severity,
			                            precursor_start, precursor_end, total_rise_ft,
			                            rise_duration_hours, avg_rise_rate_ft_per_day, max_rise_rate_ft_per_day)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			event.SiteCode, event.CrestTime, event.PeakStageFt, event.Severity,
			windowStart, windowEnd, totalRise, durationHours, avgRate, maxRate,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range events {
		tag, err := results.Exec()
		if err != nil {
			return inserted, &ingest.PersistenceError{Op: "insert derived event", Err: err}
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Observations pivots stage and discharge readings into analysis rows.
func (r *PostgresRepository) Observations(ctx context.Context, siteCode string, start, end time.Time) ([]analysis.Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT reading_time,
		       MAX(value) FILTER (WHERE parameter_code = $4) AS stage_ft,
		       MAX(value) FILTER (WHERE parameter_code = $5) AS discharge_cfs
		FROM gauge_readings
		WHERE site_code = $1 AND reading_time BETWEEN $2 AND $3
		GROUP BY reading_time
		ORDER BY reading_time`,
		siteCode, start, end, reading.ParamGageHeight, reading.ParamDischarge,
	)
	if err != nil {
		return nil, &ingest.PersistenceError{Op: "query observations", Err: err}
	}
	defer rows.Close()

	var observations []analysis.Observation
	for rows.Next() {
		var obs analysis.Observation
		if err := rows.Scan(&obs.Time, &obs.StageFt, &obs.DischargeCfs); err != nil {
			return nil, &ingest.PersistenceError{Op: "scan observation", Err: err}
		}
		obs.Time = obs.Time.UTC()
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}
