package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage(v float64) *float64 { return &v }

// risingSeries builds one observation per day from 15.0 to 21.5 ft.
func risingSeries(start time.Time) []Observation {
	stages := []float64{15.0, 16.3, 17.6, 18.9, 20.2, 21.5}
	observations := make([]Observation, len(stages))
	for i, s := range stages {
		observations[i] = Observation{Time: start.AddDate(0, 0, i), StageFt: stage(s)}
	}
	return observations
}

func TestDetectPrecursorWindowRisingSeries(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	observations := risingSeries(start)
	peakTime := observations[len(observations)-1].Time

	w := DetectPrecursorWindow(observations, peakTime, DefaultConfig())
	require.NotNil(t, w)

	// Window starts at the earliest point where peak minus stage >= 2.0.
	assert.Equal(t, start, w.Start)
	assert.Equal(t, peakTime, w.End)
	assert.InDelta(t, 6.5, w.TotalRiseFt, 1e-9)
	assert.Equal(t, 5*24, w.RiseDurationHours)
	assert.InDelta(t, 1.3, w.AvgRiseRateFtPerDay, 1e-9)
	assert.Greater(t, w.AvgRiseRateFtPerDay, 0.0)
	assert.InDelta(t, 1.3, w.MaxRiseRateFtPerDay, 1e-9)
}

func TestDetectPrecursorWindowIgnoresPostPeakTail(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	observations := risingSeries(start)
	peakTime := observations[len(observations)-1].Time

	// Falling limb after the crest must not shift the window start.
	observations = append(observations,
		Observation{Time: peakTime.AddDate(0, 0, 1), StageFt: stage(19.0)},
		Observation{Time: peakTime.AddDate(0, 0, 2), StageFt: stage(16.5)},
	)

	w := DetectPrecursorWindow(observations, peakTime, DefaultConfig())
	require.NotNil(t, w)
	assert.Equal(t, start, w.Start)
	assert.InDelta(t, 6.5, w.TotalRiseFt, 1e-9)
}

func TestDetectPrecursorWindowStopsAtEarlierCrest(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// An earlier high-water period (21.0) sits before the trough; the scan
	// must stop there instead of extending the window through it.
	stages := []float64{21.0, 15.0, 16.3, 17.6, 18.9, 20.2, 21.5}
	observations := make([]Observation, len(stages))
	for i, s := range stages {
		observations[i] = Observation{Time: start.AddDate(0, 0, i), StageFt: stage(s)}
	}
	peakTime := observations[len(observations)-1].Time

	w := DetectPrecursorWindow(observations, peakTime, DefaultConfig())
	require.NotNil(t, w)
	assert.Equal(t, start.AddDate(0, 0, 1), w.Start)
	assert.InDelta(t, 6.5, w.TotalRiseFt, 1e-9)
}

func TestDetectPrecursorWindowNoThresholdCrossing(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	observations := []Observation{
		{Time: start, StageFt: stage(20.5)},
		{Time: start.AddDate(0, 0, 1), StageFt: stage(21.0)},
		{Time: start.AddDate(0, 0, 2), StageFt: stage(21.5)},
	}

	assert.Nil(t, DetectPrecursorWindow(observations, observations[2].Time, DefaultConfig()))
}

func TestDetectPrecursorWindowEmptyAndNilStages(t *testing.T) {
	cfg := DefaultConfig()
	peak := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, DetectPrecursorWindow(nil, peak, cfg))
	assert.Nil(t, DetectPrecursorWindow([]Observation{{Time: peak}}, peak, cfg))
}

func TestDetectPrecursorWindowSkipsMissingStages(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	observations := []Observation{
		{Time: start, StageFt: stage(15.0)},
		{Time: start.AddDate(0, 0, 1)}, // stage gap
		{Time: start.AddDate(0, 0, 2), StageFt: stage(18.0)},
		{Time: start.AddDate(0, 0, 3), StageFt: stage(21.5)},
	}

	w := DetectPrecursorWindow(observations, observations[3].Time, DefaultConfig())
	require.NotNil(t, w)
	assert.Equal(t, start, w.Start)
	assert.InDelta(t, 6.5, w.TotalRiseFt, 1e-9)
}

func TestDetectPrecursorsRapidRiseRun(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Two observation pairs rising 1.0 ft/day, then a flat stretch.
	observations := []Observation{
		{Time: start, StageFt: stage(14.0)},
		{Time: start.AddDate(0, 0, 1), StageFt: stage(15.0)},
		{Time: start.AddDate(0, 0, 2), StageFt: stage(16.0)},
		{Time: start.AddDate(0, 0, 3), StageFt: stage(16.0)},
		{Time: start.AddDate(0, 0, 4), StageFt: stage(16.1)},
	}
	peakTime := observations[4].Time

	conditions := DetectPrecursors(observations, peakTime, DefaultConfig())
	require.Len(t, conditions, 1)

	c := conditions[0]
	assert.Equal(t, "rapid_rise", c.Type)
	assert.Equal(t, start, c.DetectedAt)
	assert.Equal(t, 4*24, c.HoursBeforePeak)
	assert.InDelta(t, 2.0, c.SeverityScore, 1e-9) // 1.0 ft/day against a 0.5 threshold
}

func TestDetectPrecursorsRunOpenAtEnd(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	observations := []Observation{
		{Time: start, StageFt: stage(14.0)},
		{Time: start.AddDate(0, 0, 1), StageFt: stage(15.5)},
		{Time: start.AddDate(0, 0, 2), StageFt: stage(17.5)},
	}

	conditions := DetectPrecursors(observations, observations[2].Time, DefaultConfig())
	require.Len(t, conditions, 1)
	assert.Contains(t, conditions[0].Description, "2.00 ft/day")
}

func TestDetectPrecursorsNoRapidRise(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	observations := []Observation{
		{Time: start, StageFt: stage(14.0)},
		{Time: start.AddDate(0, 0, 1), StageFt: stage(14.1)},
	}

	assert.Empty(t, DetectPrecursors(observations, observations[1].Time, DefaultConfig()))
}
