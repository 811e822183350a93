package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status      HealthStatus      `json:"status"`
	Time        Timestamp         `json:"time"`
	Subsystems  []SubsystemStatus `json:"subsystems"`
	Feeds       []FeedStatus      `json:"feeds"`
	StaleSeries []SeriesStatus    `json:"staleSeries,omitempty"`
}

// SubsystemStatus represents the status of an internal subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// FeedStatus represents the status of an upstream data feed.
type FeedStatus struct {
	Feed          string       `json:"feed"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// SeriesStatus represents one monitored (site, parameter) series that is
// stale or unhealthy.
type SeriesStatus struct {
	SiteCode            string     `json:"siteCode"`
	ParameterCode       string     `json:"parameterCode"`
	Status              string     `json:"status"`
	LatestReadingTime   *Timestamp `json:"latestReadingTime,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}
