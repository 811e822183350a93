// Package nwis provides a client for the USGS NWIS water services: the
// instantaneous-values (IV) endpoint used for polling and gap fills, and the
// daily-values (DV) endpoint used for deep history.
package nwis

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

	"github.com/rs/zerolog"

	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/provider/resilience"
	"github.com/riverwatch/riverwatch/internal/reading"
)

const (
	// DefaultIVBaseURL is the instantaneous-values endpoint.
	DefaultIVBaseURL = "https://waterservices.usgs.gov/nwis/iv/"

	// DefaultDVBaseURL is the daily-values endpoint.
	DefaultDVBaseURL = "https://waterservices.usgs.gov/nwis/dv/"

	// ProviderName identifies this provider.
	ProviderName = "nwis"
)

// ClientConfig holds configuration for the NWIS client.
type ClientConfig struct {
	// IVBaseURL overrides the instantaneous-values endpoint (tests).
	IVBaseURL string

	// DVBaseURL overrides the daily-values endpoint (tests).
	DVBaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Parameters are the USGS parameter codes to request.
	// Defaults to discharge and gage height.
	Parameters []string

	// Timeout for individual API requests (default: 30s).
	Timeout time.Duration

	// Logger records skipped records. The zero value discards.
	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a NWIS water services client.
type Client struct {
	ivBaseURL  string
	dvBaseURL  string
	params     []string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new NWIS client.
func NewClient(cfg ClientConfig) *Client {
	ivBaseURL := cfg.IVBaseURL
	if ivBaseURL == "" {
		ivBaseURL = DefaultIVBaseURL
	}
	dvBaseURL := cfg.DVBaseURL
	if dvBaseURL == "" {
		dvBaseURL = DefaultDVBaseURL
	}

	params := cfg.Parameters
	if len(params) == 0 {
		params = []string{reading.ParamDischarge, reading.ParamGageHeight}
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
		ivBaseURL:  strings.TrimSuffix(ivBaseURL, "/") + "/",
		dvBaseURL:  strings.TrimSuffix(dvBaseURL, "/") + "/",
		params:     params,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "nwis_client").Logger(),
	}
}

// WaterML-JSON envelope. Values arrive as strings; noDataValue marks
// readings where the equipment reported nothing.

type waterMLResponse struct {
	Value struct {
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	SourceInfo struct {
		SiteName string `json:"siteName"`
		SiteCode []struct {
			Value string `json:"value"`
		} `json:"siteCode"`
	} `json:"sourceInfo"`
	Variable struct {
		VariableCode []struct {
			Value string `json:"value"`
		} `json:"variableCode"`
		Unit struct {
			UnitCode string `json:"unitCode"`
		} `json:"unit"`
		NoDataValue float64 `json:"noDataValue"`
	} `json:"variable"`
	Values []struct {
		Value []timeSeriesValue `json:"value"`
	} `json:"values"`
}

type timeSeriesValue struct {
	Value      string   `json:"value"`
	Qualifiers []string `json:"qualifiers"`
	DateTime   string   `json:"dateTime"`
}

// FetchLatest retrieves the most recent instantaneous reading per site and
// parameter within the given ISO 8601 period (e.g. "PT3H").
func (c *Client) FetchLatest(ctx context.Context, sites []string, period string) ([]reading.Reading, error) {
	return c.fetchIV(ctx, sites, period, true)
}

// FetchSeries retrieves every instantaneous reading within the period, for
// gap fills.
func (c *Client) FetchSeries(ctx context.Context, sites []string, period string) ([]reading.Reading, error) {
	return c.fetchIV(ctx, sites, period, false)
}

func (c *Client) fetchIV(ctx context.Context, sites []string, period string, latestOnly bool) ([]reading.Reading, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("sites", strings.Join(sites, ","))
	q.Set("parameterCd", strings.Join(c.params, ","))
	q.Set("period", period)
	q.Set("siteStatus", "active")

	body, err := c.get(ctx, c.ivBaseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return c.parseWaterML(body, latestOnly)
}

// FetchDaily retrieves daily-value readings for an explicit date range,
// inclusive on both ends.
func (c *Client) FetchDaily(ctx context.Context, sites []string, start, end time.Time) ([]reading.Reading, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("sites", strings.Join(sites, ","))
	q.Set("parameterCd", strings.Join(c.params, ","))
	q.Set("startDT", start.UTC().Format("2006-01-02"))
	q.Set("endDT", end.UTC().Format("2006-01-02"))
	q.Set("siteStatus", "all")

	body, err := c.get(ctx, c.dvBaseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return c.parseWaterML(body, false)
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

// parseWaterML flattens a WaterML-JSON envelope into readings. Sentinel
// values are dropped, an entry that fails to decode is logged and skipped so
// one bad record cannot poison the rest of the batch, and only an
// undecodable envelope fails the call. A response with no usable series is
// ErrNoData.
func (c *Client) parseWaterML(body []byte, latestOnly bool) ([]reading.Reading, error) {
	var envelope waterMLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: "envelope", Err: err}
	}

	var readings []reading.Reading
	for _, series := range envelope.Value.TimeSeries {
		if len(series.SourceInfo.SiteCode) == 0 || len(series.Variable.VariableCode) == 0 {
			continue
		}
		siteCode := series.SourceInfo.SiteCode[0].Value
		siteName := series.SourceInfo.SiteName
		paramCode := series.Variable.VariableCode[0].Value
		unit := series.Variable.Unit.UnitCode
		noData := series.Variable.NoDataValue
		if noData == 0 {
			noData = reading.SentinelNoData
		}

		for _, block := range series.Values {
			values := block.Value

			if latestOnly {
				// USGS sorts ascending; scan back from the tail to the
				// freshest entry that is neither sentinel nor malformed.
				for i := len(values) - 1; i >= 0; i-- {
					r, err := toReading(siteCode, siteName, paramCode, unit, noData, values[i])
					if err != nil {
						c.logSkippedValue(err, siteCode, paramCode, values[i].DateTime)
						continue
					}
					if r != nil {
						readings = append(readings, *r)
						break
					}
				}
				continue
			}

			for _, v := range values {
				r, err := toReading(siteCode, siteName, paramCode, unit, noData, v)
				if err != nil {
					c.logSkippedValue(err, siteCode, paramCode, v.DateTime)
					continue
				}
				if r != nil {
					readings = append(readings, *r)
				}
			}
		}
	}

	if len(readings) == 0 {
		return nil, ingest.ErrNoData
	}
	return readings, nil
}

func (c *Client) logSkippedValue(err error, siteCode, paramCode, dateTime string) {
	c.logger.Warn().
		Err(err).
		Str("site_code", siteCode).
		Str("parameter_code", paramCode).
		Str("reading_time", dateTime).
		Msg("skipping unparsable value")
}

// toReading converts one WaterML value entry, returning nil for sentinels.
func toReading(siteCode, siteName, paramCode, unit string, noData float64, v timeSeriesValue) (*reading.Reading, error) {
	value, err := strconv.ParseFloat(v.Value, 64)
	if err != nil {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: fmt.Sprintf("value %q for site %s", v.Value, siteCode), Err: err}
	}
	if value == noData || value == reading.SentinelNoData {
		return nil, nil
	}

	t, err := ingest.ParseTime(v.DateTime)
	if err != nil {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: fmt.Sprintf("timestamp for site %s", siteCode), Err: err}
	}

	qualifier := reading.QualifierProvisional
	if len(v.Qualifiers) > 0 && v.Qualifiers[0] != "" {
		qualifier = v.Qualifiers[0]
	}

	return &reading.Reading{
		SiteCode:      siteCode,
		SiteName:      siteName,
		ParameterCode: paramCode,
		Unit:          unit,
		Value:         value,
		Time:          t,
		Qualifier:     qualifier,
	}, nil
}
