package models

// ZoneSensor references one observed series inside a zone.
type ZoneSensor struct {
	SourceID string `json:"sourceId"`
	Source   string `json:"source"`
	Type     string `json:"type"`
	Role     string `json:"role"`
	Location string `json:"location"`
	Position Point  `json:"position"`
}

// ZoneSummary is one sensor zone in a listing.
type ZoneSummary struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	LeadTimeHoursMin int    `json:"leadTimeHoursMin"`
	LeadTimeHoursMax int    `json:"leadTimeHoursMax"`
	SensorCount      int    `json:"sensorCount"`
}

// ZoneDetail is a zone with its full sensor roster.
type ZoneDetail struct {
	ZoneSummary
	AlertCondition string       `json:"alertCondition,omitempty"`
	Sensors        []ZoneSensor `json:"sensors"`
}

// ZoneList is the response for a zone listing.
type ZoneList struct {
	Zones []ZoneSummary `json:"zones"`
}
