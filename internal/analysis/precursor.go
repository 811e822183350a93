// Package analysis derives flood-risk signals from warehoused observations:
// precursor rise windows, rise-rate conditions, and backwater /
// hydraulic-control-loss detection.
package analysis

import (
	"fmt"
	"time"
)

// Config tunes the analysis algorithms.
type Config struct {
	// PrecursorLookbackDays is how far before a crest to load observations.
	PrecursorLookbackDays int

	// SignificantRiseFt is the rise (peak minus stage) that marks an
	// observation as part of the precursor window.
	SignificantRiseFt float64

	// RapidRiseFtPerDay flags a rise rate as a rapid-rise precursor.
	RapidRiseFtPerDay float64

	// PostPeakWindowDays extends the analysis window past the crest.
	PostPeakWindowDays int

	// BackwaterDifferentialFt is the boundary-minus-monitored stage
	// differential that flags backwater.
	BackwaterDifferentialFt float64

	// HydraulicMarginFt is added to tailwater when testing for loss of
	// hydraulic control.
	HydraulicMarginFt float64
}

// DefaultConfig returns the operational tuning.
func DefaultConfig() Config {
	return Config{
		PrecursorLookbackDays:   14,
		SignificantRiseFt:       2.0,
		RapidRiseFtPerDay:       0.5,
		PostPeakWindowDays:      7,
		BackwaterDifferentialFt: 2.0,
		HydraulicMarginFt:       0.5,
	}
}

// Observation is one warehoused sample inside an analysis window. Either
// value may be absent.
type Observation struct {
	Time         time.Time
	StageFt      *float64
	DischargeCfs *float64
}

// PrecursorWindow describes the sustained rise leading into a crest.
// Rates are normalized to feet per day regardless of sampling interval.
type PrecursorWindow struct {
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	TotalRiseFt         float64   `json:"total_rise_ft"`
	RiseDurationHours   int       `json:"rise_duration_hours"`
	AvgRiseRateFtPerDay float64   `json:"avg_rise_rate_ft_per_day"`
	MaxRiseRateFtPerDay float64   `json:"max_rise_rate_ft_per_day"`
}

// PrecursorCondition is a discrete signal detected ahead of a crest.
type PrecursorCondition struct {
	Type            string    `json:"type"`
	DetectedAt      time.Time `json:"detected_at"`
	Description     string    `json:"description"`
	SeverityScore   float64   `json:"severity_score"`
	Confidence      float64   `json:"confidence"`
	HoursBeforePeak int       `json:"hours_before_peak"`
}

// DetectPrecursorWindow scans backward in time from the crest. An
// observation belongs to the window while peak minus its stage stays at or
// above the significant-rise threshold; the window start is the earliest
// such point, and the scan stops at the first earlier point that drops back
// below threshold (an earlier high-water period). Returns nil when no
// observation crosses the threshold.
//
// Only observations at or before peakTime participate; the post-peak tail
// of the window never contributes a window start.
func DetectPrecursorWindow(observations []Observation, peakTime time.Time, cfg Config) *PrecursorWindow {
	scanFrom := -1
	var peakStage float64
	for i, obs := range observations {
		if obs.Time.After(peakTime) || obs.StageFt == nil {
			continue
		}
		if scanFrom == -1 || *obs.StageFt > peakStage {
			peakStage = *obs.StageFt
		}
		scanFrom = i
	}
	if scanFrom == -1 {
		return nil
	}

	startIdx := -1
	entered := false
	for i := scanFrom; i >= 0; i-- {
		if observations[i].StageFt == nil {
			continue
		}
		rise := peakStage - *observations[i].StageFt
		if rise >= cfg.SignificantRiseFt {
			startIdx = i
			entered = true
		} else if entered {
			break
		}
	}
	if startIdx == -1 {
		return nil
	}

	start := observations[startIdx]
	totalRise := peakStage - *start.StageFt
	duration := peakTime.Sub(start.Time)
	durationDays := duration.Hours() / 24.0

	avgRate := 0.0
	if durationDays > 0 {
		avgRate = totalRise / durationDays
	}

	maxRate := 0.0
	for i := startIdx; i < scanFrom; i++ {
		rate, ok := riseRate(observations[i], observations[i+1])
		if ok && rate > maxRate {
			maxRate = rate
		}
	}

	return &PrecursorWindow{
		Start:               start.Time,
		End:                 peakTime,
		TotalRiseFt:         totalRise,
		RiseDurationHours:   int(duration.Hours()),
		AvgRiseRateFtPerDay: avgRate,
		MaxRiseRateFtPerDay: maxRate,
	}
}

// DetectPrecursors finds rapid-rise runs: stretches of consecutive
// observation pairs whose rise rate stays at or above the configured
// threshold. One condition is emitted per run.
func DetectPrecursors(observations []Observation, peakTime time.Time, cfg Config) []PrecursorCondition {
	var conditions []PrecursorCondition

	runStart := -1
	var runMaxRate float64

	emit := func() {
		detectedAt := observations[runStart].Time
		conditions = append(conditions, PrecursorCondition{
			Type:            "rapid_rise",
			DetectedAt:      detectedAt,
			Description:     fmt.Sprintf("rapid rise of %.2f ft/day", runMaxRate),
			SeverityScore:   min(runMaxRate/cfg.RapidRiseFtPerDay, 10.0),
			Confidence:      0.85,
			HoursBeforePeak: int(peakTime.Sub(detectedAt).Hours()),
		})
		runStart = -1
		runMaxRate = 0
	}

	for i := 0; i+1 < len(observations); i++ {
		rate, ok := riseRate(observations[i], observations[i+1])
		if !ok {
			continue
		}
		if rate >= cfg.RapidRiseFtPerDay {
			if runStart == -1 {
				runStart = i
			}
			if rate > runMaxRate {
				runMaxRate = rate
			}
		} else if runStart != -1 {
			emit()
		}
	}
	if runStart != -1 {
		emit()
	}

	return conditions
}

// riseRate returns the stage rise rate between two observations in feet per
// day, normalized for the actual spacing. Reports false when either stage is
// absent or the pair is not strictly ordered in time.
func riseRate(a, b Observation) (float64, bool) {
	if a.StageFt == nil || b.StageFt == nil {
		return 0, false
	}
	hours := b.Time.Sub(a.Time).Hours()
	if hours <= 0 {
		return 0, false
	}
	return (*b.StageFt - *a.StageFt) / hours * 24.0, true
}
