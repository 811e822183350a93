// Package cwms provides a client for the USACE Corps Water Management System
// API. Timeseries IDs are not stable enough to hardcode, so the client first
// discovers them from the catalog by pattern and then fetches value ranges.
package cwms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/provider/resilience"
	"github.com/riverwatch/riverwatch/internal/reading"
)

const (
	// DefaultBaseURL is the public CWMS data API.
	DefaultBaseURL = "https://cwms-data.usace.army.mil/cwms-data"

	// ProviderName identifies this provider.
	ProviderName = "cwms"
)

// ClientConfig holds configuration for the CWMS client.
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

// Client is a CWMS API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new CWMS client.
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

// API response types.

type catalogResponse struct {
	Entries []catalogEntry `json:"entries"`
}

type catalogEntry struct {
	Name   string `json:"name"`
	Office string `json:"office"`
}

type timeseriesResponse struct {
	Name   string       `json:"name"`
	Office string       `json:"office"`
	Units  string       `json:"units"`
	Values []tsValueRow `json:"values"`
}

// tsValueRow is [epoch-millis, value, quality].
type tsValueRow [3]float64

// DiscoverTimeseries lists timeseries IDs matching a catalog pattern for an
// office (e.g. office "MVR", pattern "Peoria Pool.*").
func (c *Client) DiscoverTimeseries(ctx context.Context, office, pattern string) ([]string, error) {
	q := url.Values{}
	q.Set("office", office)
	q.Set("like", pattern)
	q.Set("format", "json")

	body, err := c.get(ctx, c.baseURL+"/catalog/TIMESERIES?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var catalog catalogResponse
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: "catalog", Err: err}
	}

	ids := make([]string, 0, len(catalog.Entries))
	for _, entry := range catalog.Entries {
		ids = append(ids, entry.Name)
	}
	return ids, nil
}

// DiscoverPoolElevation finds the pool elevation timeseries for a location,
// preferring instantaneous series. Returns ErrNoData when the catalog has
// nothing usable.
func (c *Client) DiscoverPoolElevation(ctx context.Context, office, locationBase string) (string, error) {
	ids, err := c.DiscoverTimeseries(ctx, office, locationBase+".*")
	if err != nil {
		return "", err
	}
	return pickTimeseries(ids,
		func(id string) bool { return strings.Contains(id, "-Pool.") && strings.Contains(id, ".Elev.Inst") },
		func(id string) bool { return strings.Contains(id, "-Pool.") && strings.Contains(id, ".Elev.") },
		func(id string) bool { return strings.Contains(id, "Pool") && strings.Contains(id, "Elev") },
	)
}

// DiscoverTailwaterElevation finds the tailwater elevation timeseries for a
// location.
func (c *Client) DiscoverTailwaterElevation(ctx context.Context, office, locationBase string) (string, error) {
	ids, err := c.DiscoverTimeseries(ctx, office, locationBase+".*")
	if err != nil {
		return "", err
	}
	return pickTimeseries(ids,
		func(id string) bool { return strings.Contains(id, "-TW.") && strings.Contains(id, ".Elev.Inst") },
		func(id string) bool {
			return (strings.Contains(id, "-TW.") || strings.Contains(id, "TW-") || strings.Contains(id, "Tailwater")) &&
				strings.Contains(id, ".Elev.")
		},
	)
}

// DiscoverStage finds the river stage timeseries for a free-flowing gauge
// location.
func (c *Client) DiscoverStage(ctx context.Context, office, locationBase string) (string, error) {
	ids, err := c.DiscoverTimeseries(ctx, office, locationBase+".*")
	if err != nil {
		return "", err
	}
	return pickTimeseries(ids,
		func(id string) bool { return strings.Contains(id, ".Stage.Inst") },
		func(id string) bool { return strings.Contains(id, ".Stage.") },
	)
}

func pickTimeseries(ids []string, preds ...func(string) bool) (string, error) {
	for _, pred := range preds {
		for _, id := range ids {
			if pred(id) {
				return id, nil
			}
		}
	}
	return "", ingest.ErrNoData
}

// FetchTimeseries retrieves values for a timeseries ID over [begin, end].
// The location base of the ID becomes the reading site code; the parameter
// is inferred from the ID pattern.
func (c *Client) FetchTimeseries(ctx context.Context, timeseriesID, office string, begin, end time.Time) ([]reading.Reading, error) {
	q := url.Values{}
	q.Set("name", timeseriesID)
	q.Set("office", office)
	q.Set("begin", begin.UTC().Format("2006-01-02T15:04:05"))
	q.Set("end", end.UTC().Format("2006-01-02T15:04:05"))

	body, err := c.get(ctx, c.baseURL+"/timeseries?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var result timeseriesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: "timeseries " + timeseriesID, Err: err}
	}

	if len(result.Values) == 0 {
		return nil, ingest.ErrNoData
	}

	siteCode, paramCode := classifyTimeseries(timeseriesID)
	readings := make([]reading.Reading, 0, len(result.Values))
	for _, row := range result.Values {
		readings = append(readings, reading.Reading{
			SiteCode:      siteCode,
			ParameterCode: paramCode,
			Unit:          result.Units,
			Value:         row[1],
			Time:          time.UnixMilli(int64(row[0])).UTC(),
			Qualifier:     reading.QualifierProvisional,
		})
	}
	return readings, nil
}

// FetchRecent retrieves the last N hours of a timeseries.
func (c *Client) FetchRecent(ctx context.Context, timeseriesID, office string, hours int, now time.Time) ([]reading.Reading, error) {
	return c.FetchTimeseries(ctx, timeseriesID, office, now.Add(-time.Duration(hours)*time.Hour), now)
}

// classifyTimeseries maps a CWMS timeseries ID like
// "Peoria-Pool.Elev.Inst.15Minutes.0.Ccp-Rev" onto a site code and a
// canonical parameter.
func classifyTimeseries(timeseriesID string) (siteCode, paramCode string) {
	parts := strings.SplitN(timeseriesID, ".", 2)
	siteCode = parts[0]

	switch {
	case strings.Contains(timeseriesID, "Pool") && strings.Contains(timeseriesID, "Elev"):
		paramCode = reading.ParamPoolElevation
	case strings.Contains(timeseriesID, "-TW.") || strings.Contains(timeseriesID, "TW-") || strings.Contains(timeseriesID, "Tailwater"):
		paramCode = reading.ParamTailwaterElevation
	default:
		paramCode = reading.ParamStageElevation
	}
	return siteCode, paramCode
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json;version=2")

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
