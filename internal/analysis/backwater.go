package analysis

import (
	"time"

	"github.com/riverwatch/riverwatch/internal/reading"
)

// BackwaterSeverity bands the stage differential between the boundary river
// and the monitored river.
type BackwaterSeverity string

const (
	BackwaterNone     BackwaterSeverity = "none"
	BackwaterMinor    BackwaterSeverity = "minor"
	BackwaterModerate BackwaterSeverity = "moderate"
	BackwaterMajor    BackwaterSeverity = "major"
	BackwaterExtreme  BackwaterSeverity = "extreme"
)

// BackwaterState is the point-in-time comparison of the two gauges. It is
// computed on demand from the latest readings, never persisted.
type BackwaterState struct {
	DifferentialFt float64           `json:"differential_ft"`
	Detected       bool              `json:"detected"`
	Severity       BackwaterSeverity `json:"severity"`
	BoundaryTime   time.Time         `json:"boundary_time"`
	MonitoredTime  time.Time         `json:"monitored_time"`
}

// DetectBackwater reports whether the boundary river stands high enough
// above the monitored river to reverse the normal gradient.
func DetectBackwater(boundaryStageFt, monitoredStageFt, thresholdFt float64) bool {
	return boundaryStageFt-monitoredStageFt > thresholdFt
}

// ClassifyBackwater bands a differential on the fixed ladder.
func ClassifyBackwater(differentialFt float64) BackwaterSeverity {
	switch {
	case differentialFt >= 10.0:
		return BackwaterExtreme
	case differentialFt >= 5.0:
		return BackwaterMajor
	case differentialFt >= 2.0:
		return BackwaterModerate
	case differentialFt >= 0.5:
		return BackwaterMinor
	default:
		return BackwaterNone
	}
}

// HydraulicControlLost reports whether a managed structure can still
// regulate upstream levels: once tailwater plus margin reaches the pool
// elevation, the dam is effectively out of the water.
func HydraulicControlLost(poolElevationFt, tailwaterElevationFt, marginFt float64) bool {
	return tailwaterElevationFt+marginFt >= poolElevationFt
}

// EvaluateBackwater computes the backwater state from the latest boundary
// and monitored stage readings.
func EvaluateBackwater(boundary, monitored reading.Reading, cfg Config) BackwaterState {
	differential := boundary.Value - monitored.Value
	return BackwaterState{
		DifferentialFt: differential,
		Detected:       DetectBackwater(boundary.Value, monitored.Value, cfg.BackwaterDifferentialFt),
		Severity:       ClassifyBackwater(differential),
		BoundaryTime:   boundary.Time,
		MonitoredTime:  monitored.Time,
	}
}
