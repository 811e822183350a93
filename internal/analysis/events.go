package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/riverwatch/riverwatch/internal/station"
)

// FloodEvent is a crest that reached flood stage. Historical events come
// from the annual-peak record; derived events add the precursor analysis
// computed from sub-daily observations.
type FloodEvent struct {
	SiteCode    string               `json:"site_code"`
	CrestTime   time.Time            `json:"crest_time"`
	PeakStageFt float64              `json:"peak_stage_ft"`
	Severity    station.Severity     `json:"severity"`
	Precursor   *PrecursorWindow     `json:"precursor,omitempty"`
	Conditions  []PrecursorCondition `json:"conditions,omitempty"`
}

// ObservationSource loads warehoused observations for an analysis window.
type ObservationSource interface {
	Observations(ctx context.Context, siteCode string, start, end time.Time) ([]Observation, error)
}

// EventStore persists flood events. Derived records for a site are cleared
// and rewritten as a unit on re-analysis; source events are never deleted.
type EventStore interface {
	Events(ctx context.Context, siteCode string) ([]FloodEvent, error)
	ClearDerived(ctx context.Context, siteCode string) error
	StoreDerived(ctx context.Context, events []FloodEvent) (int, error)
}

// Analyzer enriches stored flood events with precursor windows.
type Analyzer struct {
	source ObservationSource
	store  EventStore
	cfg    Config
	logger zerolog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(source ObservationSource, store EventStore, cfg Config, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		source: source,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

// AnalyzeSite re-derives precursor analysis for every stored event at a
// site. Prior derived records for the site are cleared first so a re-run
// supersedes rather than duplicates.
func (a *Analyzer) AnalyzeSite(ctx context.Context, siteCode string) (int, error) {
	events, err := a.store.Events(ctx, siteCode)
	if err != nil {
		return 0, fmt.Errorf("load events for %s: %w", siteCode, err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := a.store.ClearDerived(ctx, siteCode); err != nil {
		return 0, fmt.Errorf("clear derived events for %s: %w", siteCode, err)
	}

	derived := make([]FloodEvent, 0, len(events))
	for _, event := range events {
		enriched, err := a.AnalyzeEvent(ctx, event)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("site_code", event.SiteCode).
				Time("crest_time", event.CrestTime).
				Msg("skipping event")
			continue
		}
		derived = append(derived, enriched)
	}

	stored, err := a.store.StoreDerived(ctx, derived)
	if err != nil {
		return stored, fmt.Errorf("store derived events for %s: %w", siteCode, err)
	}

	a.logger.Info().
		Str("site_code", siteCode).
		Int("events", len(events)).
		Int("derived", stored).
		Msg("site analysis complete")
	return stored, nil
}

// AnalyzeEvent loads the observation window around one crest and attaches
// the precursor window and conditions.
func (a *Analyzer) AnalyzeEvent(ctx context.Context, event FloodEvent) (FloodEvent, error) {
	start := event.CrestTime.AddDate(0, 0, -a.cfg.PrecursorLookbackDays)
	end := event.CrestTime.AddDate(0, 0, a.cfg.PostPeakWindowDays)

	observations, err := a.source.Observations(ctx, event.SiteCode, start, end)
	if err != nil {
		return event, fmt.Errorf("load observations: %w", err)
	}
	if len(observations) == 0 {
		return event, fmt.Errorf("no observations in window %s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	event.Precursor = DetectPrecursorWindow(observations, event.CrestTime, a.cfg)
	event.Conditions = DetectPrecursors(observations, event.CrestTime, a.cfg)
	return event, nil
}
