package nwis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/reading"
)

const ivFixture = `{
  "value": {
    "timeSeries": [
      {
        "sourceInfo": {
          "siteName": "ILLINOIS RIVER AT KINGSTON MINES, IL",
          "siteCode": [{"value": "05568500"}]
        },
        "variable": {
          "variableCode": [{"value": "00065"}],
          "unit": {"unitCode": "ft"},
          "noDataValue": -999999
        },
        "values": [
          {
            "value": [
              {"value": "14.10", "qualifiers": ["P"], "dateTime": "2026-02-20T05:30:00.000-06:00"},
              {"value": "14.25", "qualifiers": ["P"], "dateTime": "2026-02-20T05:45:00.000-06:00"},
              {"value": "14.40", "qualifiers": ["P"], "dateTime": "2026-02-20T06:00:00.000-06:00"}
            ]
          }
        ]
      },
      {
        "sourceInfo": {
          "siteName": "ILLINOIS RIVER AT KINGSTON MINES, IL",
          "siteCode": [{"value": "05568500"}]
        },
        "variable": {
          "variableCode": [{"value": "00060"}],
          "unit": {"unitCode": "ft3/s"},
          "noDataValue": -999999
        },
        "values": [
          {
            "value": [
              {"value": "-999999", "qualifiers": ["P"], "dateTime": "2026-02-20T06:00:00.000-06:00"}
            ]
          }
        ]
      }
    ]
  }
}`

const allSentinelFixture = `{
  "value": {
    "timeSeries": [
      {
        "sourceInfo": {"siteName": "X", "siteCode": [{"value": "05567500"}]},
        "variable": {
          "variableCode": [{"value": "00065"}],
          "unit": {"unitCode": "ft"},
          "noDataValue": -999999
        },
        "values": [
          {"value": [{"value": "-999999", "qualifiers": [], "dateTime": "2026-02-20T06:00:00.000-06:00"}]}
        ]
      }
    ]
  }
}`

func TestFetchLatestReturnsTailValueOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "05568500", q.Get("sites"))
		assert.Equal(t, "00060,00065", q.Get("parameterCd"))
		assert.Equal(t, "PT3H", q.Get("period"))
		assert.Equal(t, "active", q.Get("siteStatus"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ivFixture))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{IVBaseURL: server.URL, HTTPClient: http.DefaultClient})

	readings, err := client.FetchLatest(context.Background(), []string{"05568500"}, "PT3H")
	require.NoError(t, err)

	// One series carries only the sentinel, so just the stage tail survives.
	require.Len(t, readings, 1)
	r := readings[0]
	assert.Equal(t, "05568500", r.SiteCode)
	assert.Equal(t, reading.ParamGageHeight, r.ParameterCode)
	assert.Equal(t, 14.40, r.Value)
	assert.Equal(t, reading.QualifierProvisional, r.Qualifier)
	assert.Equal(t, time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC), r.Time)
}

func TestFetchSeriesReturnsFullSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ivFixture))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{IVBaseURL: server.URL, HTTPClient: http.DefaultClient})

	readings, err := client.FetchSeries(context.Background(), []string{"05568500"}, "P120D")
	require.NoError(t, err)
	assert.Len(t, readings, 3)
}

func TestFetchLatestSentinelTailFallsBackToEarlierValue(t *testing.T) {
	const fixture = `{
	  "value": {
	    "timeSeries": [
	      {
	        "sourceInfo": {"siteName": "X", "siteCode": [{"value": "05568500"}]},
	        "variable": {
	          "variableCode": [{"value": "00065"}],
	          "unit": {"unitCode": "ft"},
	          "noDataValue": -999999
	        },
	        "values": [
	          {
	            "value": [
	              {"value": "18.10", "qualifiers": ["P"], "dateTime": "2026-02-20T05:45:00.000-06:00"},
	              {"value": "-999999", "qualifiers": ["P"], "dateTime": "2026-02-20T06:00:00.000-06:00"}
	            ]
	          }
	        ]
	      }
	    ]
	  }
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixture))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{IVBaseURL: server.URL, HTTPClient: http.DefaultClient})

	readings, err := client.FetchLatest(context.Background(), []string{"05568500"}, "PT3H")
	require.NoError(t, err)

	// The tail entry is the no-data sentinel; the freshest real value wins.
	require.Len(t, readings, 1)
	assert.Equal(t, 18.10, readings[0].Value)
	assert.Equal(t, time.Date(2026, 2, 20, 11, 45, 0, 0, time.UTC), readings[0].Time)
}

func TestFetchSeriesSkipsMalformedValue(t *testing.T) {
	const fixture = `{
	  "value": {
	    "timeSeries": [
	      {
	        "sourceInfo": {"siteName": "X", "siteCode": [{"value": "05568500"}]},
	        "variable": {
	          "variableCode": [{"value": "00065"}],
	          "unit": {"unitCode": "ft"},
	          "noDataValue": -999999
	        },
	        "values": [
	          {
	            "value": [
	              {"value": "18.10", "qualifiers": ["P"], "dateTime": "2026-02-20T05:30:00.000-06:00"},
	              {"value": "garbage", "qualifiers": ["P"], "dateTime": "2026-02-20T05:45:00.000-06:00"},
	              {"value": "18.30", "qualifiers": ["P"], "dateTime": "2026-02-20T06:00:00.000-06:00"}
	            ]
	          }
	        ]
	      }
	    ]
	  }
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixture))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{IVBaseURL: server.URL, HTTPClient: http.DefaultClient})

	// One unreadable entry must not fail the batch around it.
	readings, err := client.FetchSeries(context.Background(), []string{"05568500"}, "P1D")
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 18.10, readings[0].Value)
	assert.Equal(t, 18.30, readings[1].Value)
}

func TestFetchLatestAllSentinelIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(allSentinelFixture))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{IVBaseURL: server.URL, HTTPClient: http.DefaultClient})

	_, err := client.FetchLatest(context.Background(), []string{"05567500"}, "PT3H")
	assert.True(t, ingest.IsNoData(err))
}

func TestFetchDailySendsDateRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1943-01-01", q.Get("startDT"))
		assert.Equal(t, "1943-12-31", q.Get("endDT"))
		assert.Empty(t, q.Get("period"))

		_, _ = w.Write([]byte(ivFixture))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{DVBaseURL: server.URL, HTTPClient: http.DefaultClient})

	start := time.Date(1943, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(1943, 12, 31, 0, 0, 0, 0, time.UTC)
	readings, err := client.FetchDaily(context.Background(), []string{"05568500"}, start, end)
	require.NoError(t, err)
	assert.Len(t, readings, 3)
}

func TestFetchLatestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{IVBaseURL: server.URL, HTTPClient: http.DefaultClient})

	_, err := client.FetchLatest(context.Background(), []string{"05568500"}, "PT3H")
	require.Error(t, err)

	var transportErr *ingest.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestFetchLatestMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{IVBaseURL: server.URL, HTTPClient: http.DefaultClient})

	_, err := client.FetchLatest(context.Background(), []string{"05568500"}, "PT3H")
	require.Error(t, err)

	var parseErr *ingest.ParseError
	assert.ErrorAs(t, err, &parseErr)
}
