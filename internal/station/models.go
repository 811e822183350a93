// Package station holds the immutable registry of monitored sites: gauge
// stations with their flood thresholds, managed river structures polled via
// CWMS, and nearby weather stations. The registry is loaded once at startup
// and never mutated.
package station

import "fmt"

// Severity classifies a stage reading against a station's flood thresholds.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityFlood    Severity = "flood"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

// Thresholds are NWS flood stages for a gauge, in feet. Not every station
// has published thresholds; pool gauges in particular do not.
type Thresholds struct {
	ActionFt   float64 `toml:"action_stage_ft" json:"action_stage_ft"`
	FloodFt    float64 `toml:"flood_stage_ft" json:"flood_stage_ft"`
	ModerateFt float64 `toml:"moderate_flood_stage_ft" json:"moderate_flood_stage_ft"`
	MajorFt    float64 `toml:"major_flood_stage_ft" json:"major_flood_stage_ft"`
}

// Validate enforces strictly ascending stages. A registry entry that fails
// this is a data-entry error and refuses to load.
func (t Thresholds) Validate() error {
	if !(t.ActionFt < t.FloodFt && t.FloodFt < t.ModerateFt && t.ModerateFt < t.MajorFt) {
		return fmt.Errorf("thresholds not strictly ascending: action=%.2f flood=%.2f moderate=%.2f major=%.2f",
			t.ActionFt, t.FloodFt, t.ModerateFt, t.MajorFt)
	}
	return nil
}

// Classify maps a stage reading onto the highest threshold it reaches.
func (t Thresholds) Classify(stageFt float64) Severity {
	switch {
	case stageFt >= t.MajorFt:
		return SeverityMajor
	case stageFt >= t.ModerateFt:
		return SeverityModerate
	case stageFt >= t.FloodFt:
		return SeverityFlood
	default:
		return SeverityNone
	}
}

// AboveAction reports whether a stage has crossed the action stage, the
// point at which the gauge warrants closer watching.
func (t Thresholds) AboveAction(stageFt float64) bool {
	return stageFt >= t.ActionFt
}

// Station is a monitored river gauge.
type Station struct {
	SiteCode    string      `toml:"site_code" json:"site_code"`
	Name        string      `toml:"name" json:"name"`
	Description string      `toml:"description" json:"description"`
	Latitude    float64     `toml:"latitude" json:"latitude"`
	Longitude   float64     `toml:"longitude" json:"longitude"`
	Thresholds  *Thresholds `toml:"thresholds" json:"thresholds,omitempty"`
}

// Structure is a managed navigation structure (lock and dam) whose pool and
// tailwater elevations come from the CWMS API rather than NWIS.
type Structure struct {
	Name         string  `toml:"name" json:"name"`
	Office       string  `toml:"office" json:"office"`
	CwmsLocation string  `toml:"cwms_location" json:"cwms_location"`
	RiverMile    float64 `toml:"river_mile" json:"river_mile"`
	NormalPoolFt float64 `toml:"normal_pool_ft" json:"normal_pool_ft"`
}

// WeatherStation is an ASOS site providing precipitation context.
type WeatherStation struct {
	ID        string  `toml:"id" json:"id"`
	Name      string  `toml:"name" json:"name"`
	Network   string  `toml:"network" json:"network"`
	Latitude  float64 `toml:"latitude" json:"latitude"`
	Longitude float64 `toml:"longitude" json:"longitude"`
}
