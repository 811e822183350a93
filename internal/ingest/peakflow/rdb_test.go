package peakflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/station"
)

const rdbFixture = `# USGS peak streamflow data
# retrieved 2026-02-20
agency_cd	site_no	peak_dt	peak_tm	peak_va	peak_cd	gage_ht	gage_ht_cd	ag_gage_ht
5s	15s	10d	6s	8s	33s	8s	27s	8s
USGS	05568500	1943-05-22		88200		28.80
USGS	05568500	2013-04-23	14:30	72900	C	29.35	1,2
USGS	05568500	2019-05-01		61400		25.10
USGS	05568500	1988-08-10		12000		10.20
USGS	05568500	1957-07-01		30000				22.50
`

func TestParseRDB(t *testing.T) {
	records, err := ParseRDB(rdbFixture)
	require.NoError(t, err)
	require.Len(t, records, 5)

	first := records[0]
	assert.Equal(t, "05568500", first.SiteCode)
	assert.Equal(t, time.Date(1943, 5, 22, 0, 0, 0, 0, time.UTC), first.PeakDate)
	assert.Nil(t, first.PeakTime)
	require.NotNil(t, first.PeakDischargeCfs)
	assert.Equal(t, 88200.0, *first.PeakDischargeCfs)
	require.NotNil(t, first.GageHeightFt)
	assert.Equal(t, 28.80, *first.GageHeightFt)

	timed := records[1]
	require.NotNil(t, timed.PeakTime)
	assert.Equal(t, "14:30", *timed.PeakTime)
	assert.Equal(t, []string{"1", "2"}, timed.GageHtQualifications)

	alternate := records[4]
	assert.Nil(t, alternate.GageHeightFt)
	require.NotNil(t, alternate.AlternateGageHtFt)
	assert.Equal(t, 22.50, *alternate.AlternateGageHtFt)
}

func TestParseRDBMissingHeader(t *testing.T) {
	_, err := ParseRDB("# only comments\n")
	var parseErr *ingest.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseRDBNoRows(t *testing.T) {
	body := "agency_cd\tsite_no\tpeak_dt\n5s\t15s\t10d\n"
	_, err := ParseRDB(body)
	assert.True(t, ingest.IsNoData(err))
}

func TestCrestTimeDefaultsToNoon(t *testing.T) {
	r := Record{PeakDate: time.Date(1943, 5, 22, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, time.Date(1943, 5, 22, 12, 0, 0, 0, time.UTC), r.CrestTime())

	tm := "14:30"
	r.PeakTime = &tm
	assert.Equal(t, time.Date(1943, 5, 22, 14, 30, 0, 0, time.UTC), r.CrestTime())
}

func TestDeriveFloodEvents(t *testing.T) {
	records, err := ParseRDB(rdbFixture)
	require.NoError(t, err)

	thresholds := station.Thresholds{ActionFt: 14.0, FloodFt: 16.0, ModerateFt: 20.0, MajorFt: 24.0}
	events := DeriveFloodEvents(records, thresholds)

	// 10.20 ft is below flood stage and drops out; the others qualify,
	// including the record that only has an alternate gage height.
	require.Len(t, events, 4)

	assert.Equal(t, station.SeverityMajor, events[0].Severity)   // 28.80
	assert.Equal(t, station.SeverityMajor, events[1].Severity)   // 29.35
	assert.Equal(t, station.SeverityMajor, events[2].Severity)   // 25.10
	assert.Equal(t, station.SeverityModerate, events[3].Severity) // 22.50 via alternate

	assert.Equal(t, time.Date(2013, 4, 23, 14, 30, 0, 0, time.UTC), events[1].CrestTime)
	assert.Equal(t, time.Date(1943, 5, 22, 12, 0, 0, 0, time.UTC), events[0].CrestTime)
}

func TestClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "05568500", q.Get("site_no"))
		assert.Equal(t, "rdb", q.Get("format"))

		_, _ = w.Write([]byte(rdbFixture))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	records, err := client.Fetch(context.Background(), "05568500")
	require.NoError(t, err)
	assert.Len(t, records, 5)
}
