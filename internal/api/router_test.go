package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/riverwatch/internal/analysis"
	"github.com/riverwatch/riverwatch/internal/api"
	"github.com/riverwatch/riverwatch/internal/api/models"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/reading"
	"github.com/riverwatch/riverwatch/internal/station"
	"github.com/riverwatch/riverwatch/internal/warehouse"
	"github.com/riverwatch/riverwatch/internal/zone"
)

// testStations builds a two-gauge registry, one with flood thresholds.
func testStations(t *testing.T) *station.Registry {
	t.Helper()
	registry, err := station.New(
		[]station.Station{
			{
				SiteCode:  "05568500",
				Name:      "Illinois River at Kingston Mines",
				Latitude:  40.553,
				Longitude: -89.779,
				Thresholds: &station.Thresholds{
					ActionFt:   16,
					FloodFt:    18,
					ModerateFt: 23,
					MajorFt:    26,
				},
			},
			{
				SiteCode:  "05568000",
				Name:      "Illinois River at Peoria (Pool)",
				Latitude:  40.694,
				Longitude: -89.586,
			},
		},
		nil, nil,
	)
	require.NoError(t, err)
	return registry
}

func testZones() []zone.Zone {
	return []zone.Zone{
		{
			ID:               1,
			Name:             "Monitored Reach",
			LeadTimeHoursMin: 0,
			LeadTimeHoursMax: 6,
			AlertCondition:   "stage above action",
			Sensors: []zone.Sensor{
				{USGSID: "05568500", Source: "usgs", Type: "stage", Role: zone.RoleDirect, Location: "Kingston Mines", Latitude: 40.553, Longitude: -89.779},
			},
		},
		{
			ID:               4,
			Name:             "Downstream Boundary",
			LeadTimeHoursMin: 12,
			LeadTimeHoursMax: 48,
			Sensors: []zone.Sensor{
				{CwmsLocation: "LaGrange Pool-TW", Source: "cwms", Type: "elevation", Role: zone.RoleBoundary, Location: "LaGrange Lock and Dam"},
			},
		},
	}
}

// seedRepository stores stage and discharge readings and one flood event
// for the Kingston Mines gauge.
func seedRepository(t *testing.T, repo *warehouse.MemoryRepository) {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Minute)
	_, err := repo.StoreReadings(ctx, []reading.Reading{
		{
			SiteCode:      "05568500",
			ParameterCode: reading.ParamGageHeight,
			Unit:          "ft",
			Value:         19.2,
			Time:          now.Add(-2 * time.Hour),
			Qualifier:     reading.QualifierProvisional,
		},
		{
			SiteCode:      "05568500",
			ParameterCode: reading.ParamGageHeight,
			Unit:          "ft",
			Value:         19.6,
			Time:          now.Add(-15 * time.Minute),
			Qualifier:     reading.QualifierProvisional,
		},
		{
			SiteCode:      "05568500",
			ParameterCode: reading.ParamDischarge,
			Unit:          "cfs",
			Value:         41200,
			Time:          now.Add(-15 * time.Minute),
			Qualifier:     reading.QualifierProvisional,
		},
	})
	require.NoError(t, err)

	_, err = repo.StoreEvents(ctx, []analysis.FloodEvent{
		{
			SiteCode:    "05568500",
			CrestTime:   time.Date(2013, 4, 23, 12, 0, 0, 0, time.UTC),
			PeakStageFt: 29.35,
			Severity:    station.SeverityMajor,
		},
	})
	require.NoError(t, err)
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := warehouse.NewMemoryRepository()
	seedRepository(t, repo)

	logger := zerolog.New(io.Discard)
	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    logger,
		Store:     repo,
		Cache:     monitor.NewCache(repo, logger),
		Stations:  testStations(t),
		Zones:     testZones(),
	})
}

func doGet(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/ops/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/ops/ready")

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/ops/status")

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)

	// The staleness cache has never been refreshed in this test, so the
	// system reports degraded rather than OK.
	assert.Equal(t, models.HealthStatusDegraded, status.Status)

	names := make(map[string]models.HealthStatus)
	for _, sub := range status.Subsystems {
		names[sub.Name] = sub.Status
	}
	assert.Equal(t, models.HealthStatusOK, names["warehouse"])
	assert.Equal(t, models.HealthStatusDegraded, names["staleness-cache"])
}

func TestRouter_ListSites(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/sites")

	assert.Equal(t, http.StatusOK, w.Code)

	var list models.SiteList
	err := json.Unmarshal(w.Body.Bytes(), &list)
	require.NoError(t, err)

	require.Len(t, list.Sites, 2)
	assert.Equal(t, "05568500", list.Sites[0].SiteCode)
	require.NotNil(t, list.Sites[0].Thresholds)
	assert.InDelta(t, 18.0, list.Sites[0].Thresholds.FloodFt, 0.001)
	assert.Nil(t, list.Sites[1].Thresholds)
}

func TestRouter_GetSite(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/sites/05568500")

	assert.Equal(t, http.StatusOK, w.Code)

	var detail models.SiteDetail
	err := json.Unmarshal(w.Body.Bytes(), &detail)
	require.NoError(t, err)

	assert.Equal(t, "05568500", detail.SiteCode)
	require.NotNil(t, detail.Stage)
	assert.InDelta(t, 19.6, detail.Stage.Value, 0.001)
	require.NotNil(t, detail.Discharge)
	assert.InDelta(t, 41200.0, detail.Discharge.Value, 0.001)

	// 19.6 ft is above flood stage (18) but below moderate (23).
	require.NotNil(t, detail.Severity)
	assert.Equal(t, "flood", *detail.Severity)
	require.NotNil(t, detail.AboveAction)
	assert.True(t, *detail.AboveAction)
}

func TestRouter_GetSite_NoThresholdsNoSeverity(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/sites/05568000")

	assert.Equal(t, http.StatusOK, w.Code)

	var detail models.SiteDetail
	err := json.Unmarshal(w.Body.Bytes(), &detail)
	require.NoError(t, err)

	assert.Nil(t, detail.Stage)
	assert.Nil(t, detail.Severity)
	assert.Nil(t, detail.AboveAction)
}

func TestRouter_GetSite_Unknown(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/sites/99999999")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_GetReadings(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/sites/05568500/readings")

	assert.Equal(t, http.StatusOK, w.Code)

	var series models.ReadingSeries
	err := json.Unmarshal(w.Body.Bytes(), &series)
	require.NoError(t, err)

	assert.Equal(t, "05568500", series.SiteCode)
	assert.Equal(t, reading.ParamGageHeight, series.ParameterCode)
	assert.Equal(t, "ft", series.Unit)
	require.Len(t, series.Readings, 2)
	assert.InDelta(t, 19.2, series.Readings[0].Value, 0.001)
	assert.InDelta(t, 19.6, series.Readings[1].Value, 0.001)
}

func TestRouter_GetReadings_ExplicitWindow(t *testing.T) {
	router := newTestRouter(t)

	start := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Format(time.RFC3339)
	w := doGet(t, router, "/v1/sites/05568500/readings?parameter=00060&start="+start+"&end="+end)

	assert.Equal(t, http.StatusOK, w.Code)

	var series models.ReadingSeries
	err := json.Unmarshal(w.Body.Bytes(), &series)
	require.NoError(t, err)

	assert.Equal(t, reading.ParamDischarge, series.ParameterCode)
	require.Len(t, series.Readings, 1)
	assert.InDelta(t, 41200.0, series.Readings[0].Value, 0.001)
}

func TestRouter_GetReadings_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	// start after end
	w := doGet(t, router, "/v1/sites/05568500/readings?start=2024-06-02T00:00:00Z&end=2024-06-01T00:00:00Z")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	require.NotEmpty(t, problem.Errors)
	assert.Equal(t, "start", problem.Errors[0].Field)
}

func TestRouter_GetReadings_MalformedTimestamp(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/sites/05568500/readings?start=yesterday")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)
	require.NotEmpty(t, problem.Errors)
	assert.Equal(t, "INVALID_FORMAT", problem.Errors[0].Code)
}

func TestRouter_ListEvents(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/sites/05568500/events")

	assert.Equal(t, http.StatusOK, w.Code)

	var list models.FloodEventList
	err := json.Unmarshal(w.Body.Bytes(), &list)
	require.NoError(t, err)

	assert.Equal(t, "05568500", list.SiteCode)
	require.Len(t, list.Events, 1)
	assert.InDelta(t, 29.35, list.Events[0].PeakStageFt, 0.001)
	assert.Equal(t, "major", list.Events[0].Severity)
}

func TestRouter_ListZones(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/zones")

	assert.Equal(t, http.StatusOK, w.Code)

	var list models.ZoneList
	err := json.Unmarshal(w.Body.Bytes(), &list)
	require.NoError(t, err)

	require.Len(t, list.Zones, 2)
	assert.Equal(t, "Monitored Reach", list.Zones[0].Name)
	assert.Equal(t, 1, list.Zones[0].SensorCount)
}

func TestRouter_GetZone(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/zones/4")

	assert.Equal(t, http.StatusOK, w.Code)

	var detail models.ZoneDetail
	err := json.Unmarshal(w.Body.Bytes(), &detail)
	require.NoError(t, err)

	assert.Equal(t, 4, detail.ID)
	require.Len(t, detail.Sensors, 1)
	assert.Equal(t, "LaGrange Pool-TW", detail.Sensors[0].SourceID)
	assert.Equal(t, zone.RoleBoundary, detail.Sensors[0].Role)
}

func TestRouter_GetZone_InvalidID(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/zones/abc")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_GetZone_Unknown(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/zones/99")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/ops/health")

	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "client-id-42")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "client-id-42", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/v1/nonexistent")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
