package models

// FloodThresholds are the NWS flood stages for a gauge, in feet.
type FloodThresholds struct {
	ActionFt   float64 `json:"actionStageFt"`
	FloodFt    float64 `json:"floodStageFt"`
	ModerateFt float64 `json:"moderateFloodStageFt"`
	MajorFt    float64 `json:"majorFloodStageFt"`
}

// SiteSummary is one monitored gauge in a site listing.
type SiteSummary struct {
	SiteCode    string           `json:"siteCode"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Location    Point            `json:"location"`
	Thresholds  *FloodThresholds `json:"thresholds,omitempty"`
}

// ObservedValue is the latest observation for one parameter.
type ObservedValue struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Time      Timestamp `json:"time"`
	Qualifier string    `json:"qualifier,omitempty"`
}

// SiteDetail is a gauge with its freshest observations and flood
// classification.
type SiteDetail struct {
	SiteSummary
	Stage       *ObservedValue `json:"stage,omitempty"`
	Discharge   *ObservedValue `json:"discharge,omitempty"`
	Severity    *string        `json:"severity,omitempty"`
	AboveAction *bool          `json:"aboveAction,omitempty"`
}

// SiteList is the response for a site listing.
type SiteList struct {
	Sites []SiteSummary `json:"sites"`
}

// ReadingPoint is one observation in a series response.
type ReadingPoint struct {
	Time      Timestamp `json:"time"`
	Value     float64   `json:"value"`
	Qualifier string    `json:"qualifier,omitempty"`
}

// ReadingSeries is the response for a readings range query.
type ReadingSeries struct {
	SiteCode      string         `json:"siteCode"`
	ParameterCode string         `json:"parameterCode"`
	Unit          string         `json:"unit,omitempty"`
	Start         Timestamp      `json:"start"`
	End           Timestamp      `json:"end"`
	Readings      []ReadingPoint `json:"readings"`
}

// PrecursorSummary is the derived rise window ahead of a flood crest.
type PrecursorSummary struct {
	Start               Timestamp `json:"start"`
	End                 Timestamp `json:"end"`
	TotalRiseFt         float64   `json:"totalRiseFt"`
	RiseDurationHours   int       `json:"riseDurationHours"`
	AvgRiseRateFtPerDay float64   `json:"avgRiseRateFtPerDay"`
	MaxRiseRateFtPerDay float64   `json:"maxRiseRateFtPerDay"`
}

// FloodEventModel is one historical crest at a site.
type FloodEventModel struct {
	SiteCode    string            `json:"siteCode"`
	CrestTime   Timestamp         `json:"crestTime"`
	PeakStageFt float64           `json:"peakStageFt"`
	Severity    string            `json:"severity"`
	Precursor   *PrecursorSummary `json:"precursor,omitempty"`
}

// FloodEventList is the response for a site's flood-event history.
type FloodEventList struct {
	SiteCode string            `json:"siteCode"`
	Events   []FloodEventModel `json:"events"`
}
