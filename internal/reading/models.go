// Package reading defines the canonical observation model that every ingest
// adapter normalizes into and that the warehouse persists.
package reading

import "time"

// Parameter codes. USGS NWIS parameters keep their five-digit codes; values
// from the USACE CWMS API are mapped onto named elevation parameters so that
// one reading table serves both feeds.
const (
	ParamDischarge  = "00060" // streamflow, cubic feet per second
	ParamGageHeight = "00065" // gage height, feet
	ParamPrecip     = "00045" // precipitation, inches

	ParamPoolElevation      = "Elev-Pool"
	ParamTailwaterElevation = "Elev-Tailwater"
	ParamStageElevation     = "Elev-Stage"
)

// Qualifier values carried through from the upstream feeds.
const (
	QualifierProvisional = "P"
	QualifierApproved    = "A"
)

// SentinelNoData is the upstream placeholder for "equipment reported nothing".
// Adapters drop these values; they must never reach the warehouse.
const SentinelNoData = -999999.0

// Reading is a single observation from any feed, normalized to UTC.
type Reading struct {
	SiteCode      string    `json:"site_code"`
	SiteName      string    `json:"site_name,omitempty"`
	ParameterCode string    `json:"parameter_code"`
	Unit          string    `json:"unit"`
	Value         float64   `json:"value"`
	Time          time.Time `json:"time"`
	Qualifier     string    `json:"qualifier"`
}

// Age reports how old the reading is relative to now.
func (r Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.Time)
}

// Latest returns the reading with the most recent timestamp, or nil for an
// empty slice.
func Latest(readings []Reading) *Reading {
	var latest *Reading
	for i := range readings {
		if latest == nil || readings[i].Time.After(latest.Time) {
			latest = &readings[i]
		}
	}
	return latest
}
