// Package iem provides a client for the Iowa Environmental Mesonet ASOS
// feeds: current conditions as JSON and one-minute precipitation as CSV.
package iem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/provider/resilience"
	"github.com/riverwatch/riverwatch/internal/reading"
)

const (
	// DefaultBaseURL is the IEM mesonet host.
	DefaultBaseURL = "https://mesonet.agron.iastate.edu"

	// ProviderName identifies this provider.
	ProviderName = "iem"
)

// ClientConfig holds configuration for the IEM client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 30s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an IEM ASOS client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new IEM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Observation is a single ASOS weather observation, normalized to UTC.
type Observation struct {
	StationID    string
	Time         time.Time
	TempF        *float64
	DewpointF    *float64
	WindDirDeg   *float64
	WindSpeedKt  *float64
	PrecipHourIn *float64
}

// API response types.

type currentResponse struct {
	Data []currentObservation `json:"data"`
}

type currentObservation struct {
	Station    string   `json:"station"`
	Valid      string   `json:"valid"`
	TempF      *float64 `json:"tmpf"`
	DewpointF  *float64 `json:"dwpf"`
	WindDir    *float64 `json:"drct"`
	WindSpeed  *float64 `json:"sknt"`
	PrecipHour *float64 `json:"p01i"`
}

// FetchCurrent retrieves the latest observation for a station.
func (c *Client) FetchCurrent(ctx context.Context, stationID string) (*Observation, error) {
	q := url.Values{}
	q.Set("station", stationID)

	body, err := c.get(ctx, c.baseURL+"/json/current.py?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var result currentResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: "current conditions for " + stationID, Err: err}
	}
	if len(result.Data) == 0 {
		return nil, ingest.ErrNoData
	}

	obs := result.Data[0]
	t, err := ingest.ParseTime(obs.Valid)
	if err != nil {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: "timestamp for " + stationID, Err: err}
	}

	return &Observation{
		StationID:    obs.Station,
		Time:         t,
		TempF:        obs.TempF,
		DewpointF:    obs.DewpointF,
		WindDirDeg:   obs.WindDir,
		WindSpeedKt:  obs.WindSpeed,
		PrecipHourIn: obs.PrecipHour,
	}, nil
}

// FetchMinutePrecip retrieves one-minute observations for [begin, end] from
// the asos1min endpoint. The CSV carries naive UTC wall-clock timestamps.
func (c *Client) FetchMinutePrecip(ctx context.Context, stationID string, begin, end time.Time) ([]Observation, error) {
	begin, end = begin.UTC(), end.UTC()

	q := url.Values{}
	q.Set("station", stationID)
	q.Set("tz", "UTC")
	q.Set("year1", strconv.Itoa(begin.Year()))
	q.Set("month1", strconv.Itoa(int(begin.Month())))
	q.Set("day1", strconv.Itoa(begin.Day()))
	q.Set("hour1", strconv.Itoa(begin.Hour()))
	q.Set("minute1", strconv.Itoa(begin.Minute()))
	q.Set("year2", strconv.Itoa(end.Year()))
	q.Set("month2", strconv.Itoa(int(end.Month())))
	q.Set("day2", strconv.Itoa(end.Day()))
	q.Set("hour2", strconv.Itoa(end.Hour()))
	q.Set("minute2", strconv.Itoa(end.Minute()))
	q.Set("sample", "1min")
	q.Set("what", "view")
	q.Set("delim", "comma")
	q.Set("gis", "no")

	requestURL := c.baseURL + "/cgi-bin/request/asos1min.py?" + q.Encode() +
		"&vars=tmpf&vars=dwpf&vars=sknt&vars=drct&vars=p01m"

	body, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}
	return parseMinuteCSV(string(body), stationID)
}

// parseMinuteCSV parses the asos1min comma-delimited body. Column order
// matches the vars requested above: station, valid, tmpf, dwpf, sknt, drct,
// precip.
func parseMinuteCSV(body, stationID string) ([]Observation, error) {
	var observations []Observation

	for i, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 6 {
			continue
		}

		t, err := ingest.ParseTime(fields[1])
		if err != nil {
			return nil, &ingest.ParseError{Feed: ProviderName, Detail: "minute timestamp for " + stationID, Err: err}
		}

		obs := Observation{StationID: stationID, Time: t}
		obs.TempF = parseOptional(fields[2])
		obs.DewpointF = parseOptional(fields[3])
		obs.WindSpeedKt = parseOptional(fields[4])
		obs.WindDirDeg = parseOptional(fields[5])
		if len(fields) > 6 {
			if p := parseOptional(fields[6]); p != nil {
				// One-minute accumulation scaled to an hourly rate.
				hourly := *p * 60.0
				obs.PrecipHourIn = &hourly
			}
		}
		observations = append(observations, obs)
	}

	if len(observations) == 0 {
		return nil, ingest.ErrNoData
	}
	return observations, nil
}

func parseOptional(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// ToReading converts an observation into a canonical precipitation reading,
// or nil when the observation carries no precip value.
func ToReading(obs Observation) *reading.Reading {
	if obs.PrecipHourIn == nil {
		return nil
	}
	return &reading.Reading{
		SiteCode:      obs.StationID,
		ParameterCode: reading.ParamPrecip,
		Unit:          "in",
		Value:         *obs.PrecipHourIn,
		Time:          obs.Time,
		Qualifier:     reading.QualifierProvisional,
	}
}

// CumulativePrecip sums hourly precip across observations, skipping gaps.
func CumulativePrecip(observations []Observation) float64 {
	var total float64
	for _, obs := range observations {
		if obs.PrecipHourIn != nil {
			total += *obs.PrecipHourIn
		}
	}
	return total
}

// DetectRainfallEvent reports whether cumulative precip reaches the
// threshold, in inches.
func DetectRainfallEvent(observations []Observation, thresholdIn float64) bool {
	return CumulativePrecip(observations) >= thresholdIn
}

// PrecipIntensity returns average intensity in inches per hour over the
// given span, or nil when there are no observations.
func PrecipIntensity(observations []Observation, hours float64) *float64 {
	if len(observations) == 0 || hours <= 0 {
		return nil
	}
	intensity := CumulativePrecip(observations) / hours
	return &intensity
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ingest.TransportError{Feed: ProviderName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ingest.TransportError{
			Feed: ProviderName,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ingest.TransportError{Feed: ProviderName, Err: err}
	}
	return body, nil
}
