package peakflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/provider/resilience"
)

// DefaultBaseURL is the NWIS peak streamflow endpoint for Illinois sites.
const DefaultBaseURL = "https://nwis.waterdata.usgs.gov/il/nwis/peak"

// ClientConfig holds configuration for the peak streamflow client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 60s; the archive
	// endpoint is slow).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches peak streamflow archives.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new peak streamflow client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: time.Second,
			MaxInterval:     15 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Fetch retrieves and parses the complete annual-peak archive for a site.
func (c *Client) Fetch(ctx context.Context, siteCode string) ([]Record, error) {
	q := url.Values{}
	q.Set("site_no", siteCode)
	q.Set("agency_cd", "USGS")
	q.Set("format", "rdb")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), http.NoBody)
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
	return ParseRDB(string(body))
}
