package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/riverwatch/internal/station"
)

type fakeObservationSource struct {
	observations []Observation
	err          error
}

func (f *fakeObservationSource) Observations(_ context.Context, _ string, _, _ time.Time) ([]Observation, error) {
	return f.observations, f.err
}

type fakeEventStore struct {
	events  []FloodEvent
	cleared []string
	stored  []FloodEvent
}

func (f *fakeEventStore) Events(_ context.Context, siteCode string) ([]FloodEvent, error) {
	return f.events, nil
}

func (f *fakeEventStore) ClearDerived(_ context.Context, siteCode string) error {
	f.cleared = append(f.cleared, siteCode)
	return nil
}

func (f *fakeEventStore) StoreDerived(_ context.Context, events []FloodEvent) (int, error) {
	f.stored = append(f.stored, events...)
	return len(events), nil
}

func TestAnalyzeSiteClearsAndRederives(t *testing.T) {
	crest := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)
	source := &fakeObservationSource{observations: risingSeries(crest.AddDate(0, 0, -5))}
	store := &fakeEventStore{
		events: []FloodEvent{
			{SiteCode: "05568500", CrestTime: crest, PeakStageFt: 21.5, Severity: station.SeverityModerate},
		},
	}

	analyzer := NewAnalyzer(source, store, DefaultConfig(), zerolog.Nop())

	n, err := analyzer.AnalyzeSite(context.Background(), "05568500")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"05568500"}, store.cleared)
	require.Len(t, store.stored, 1)

	derived := store.stored[0]
	require.NotNil(t, derived.Precursor)
	assert.InDelta(t, 6.5, derived.Precursor.TotalRiseFt, 1e-9)
	assert.NotEmpty(t, derived.Conditions)
}

func TestAnalyzeSiteNoEvents(t *testing.T) {
	store := &fakeEventStore{}
	analyzer := NewAnalyzer(&fakeObservationSource{}, store, DefaultConfig(), zerolog.Nop())

	n, err := analyzer.AnalyzeSite(context.Background(), "05567500")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.cleared) // nothing to supersede
}

func TestAnalyzeEventNoObservations(t *testing.T) {
	analyzer := NewAnalyzer(&fakeObservationSource{}, &fakeEventStore{}, DefaultConfig(), zerolog.Nop())

	_, err := analyzer.AnalyzeEvent(context.Background(), FloodEvent{
		SiteCode:  "05568500",
		CrestTime: time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}
