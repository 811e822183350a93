package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riverwatch/riverwatch/internal/reading"
)

func TestDetectBackwater(t *testing.T) {
	assert.True(t, DetectBackwater(435.0, 430.0, 2.0))
	assert.False(t, DetectBackwater(430.0, 435.0, 2.0))
	assert.False(t, DetectBackwater(432.0, 430.0, 2.0)) // exactly at threshold is not over it
}

func TestClassifyBackwaterLadder(t *testing.T) {
	tests := []struct {
		differential float64
		want         BackwaterSeverity
	}{
		{0.0, BackwaterNone},
		{0.4, BackwaterNone},
		{0.5, BackwaterMinor},
		{1.9, BackwaterMinor},
		{2.0, BackwaterModerate},
		{4.9, BackwaterModerate},
		{5.0, BackwaterMajor},
		{9.9, BackwaterMajor},
		{10.0, BackwaterExtreme},
		{-3.0, BackwaterNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyBackwater(tt.differential), "differential %.1f", tt.differential)
	}
}

func TestHydraulicControlLost(t *testing.T) {
	assert.True(t, HydraulicControlLost(440.0, 439.5, 0.5))
	assert.True(t, HydraulicControlLost(440.0, 441.0, 0.5))
	assert.False(t, HydraulicControlLost(440.0, 438.0, 0.5))
}

func TestEvaluateBackwater(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	boundary := reading.Reading{SiteCode: "Grafton", Value: 435.0, Time: now}
	monitored := reading.Reading{SiteCode: "05568500", Value: 430.0, Time: now.Add(-10 * time.Minute)}

	state := EvaluateBackwater(boundary, monitored, DefaultConfig())
	assert.True(t, state.Detected)
	assert.InDelta(t, 5.0, state.DifferentialFt, 1e-9)
	assert.Equal(t, BackwaterMajor, state.Severity)
	assert.Equal(t, now, state.BoundaryTime)
}
