// Package handler provides HTTP handlers for the status API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/riverwatch/riverwatch/internal/api/models"
	"github.com/riverwatch/riverwatch/internal/api/response"
	"github.com/riverwatch/riverwatch/internal/monitor"
	"github.com/riverwatch/riverwatch/internal/provider/resilience"
)

// Pinger verifies warehouse connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	store     Pinger
	cache     *monitor.Cache
	feeds     *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. cache and feeds may be nil, in
// which case the status endpoint omits their sections.
func NewOpsHandler(version, buildTime string, store Pinger, cache *monitor.Cache, feeds *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		store:     store,
		cache:     cache,
		feeds:     feeds,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Ready means
// the warehouse answers a ping.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"warehouse": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - feed and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(now),
	}

	status.Subsystems = append(status.Subsystems, h.warehouseStatus(r.Context(), &status.Status))

	if h.cache != nil {
		status.Subsystems = append(status.Subsystems, h.cacheStatus())
		status.StaleSeries = staleSeries(h.cache, now)
		if len(status.StaleSeries) > 0 && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.feeds != nil {
		status.Feeds = feedStatuses(h.feeds)
		for _, f := range status.Feeds {
			if f.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) warehouseStatus(ctx context.Context, overall *models.HealthStatus) models.SubsystemStatus {
	sub := models.SubsystemStatus{Name: "warehouse", Status: models.HealthStatusOK}
	if h.store == nil {
		return sub
	}
	if err := h.store.Ping(ctx); err != nil {
		detail := err.Error()
		sub.Status = models.HealthStatusFail
		sub.Detail = &detail
		*overall = models.HealthStatusFail
	}
	return sub
}

func (h *OpsHandler) cacheStatus() models.SubsystemStatus {
	sub := models.SubsystemStatus{Name: "staleness-cache", Status: models.HealthStatusOK}
	last := h.cache.LastRefresh()
	if last.IsZero() {
		detail := "never refreshed"
		sub.Status = models.HealthStatusDegraded
		sub.Detail = &detail
		return sub
	}
	detail := "last refresh " + last.Format(time.RFC3339)
	sub.Detail = &detail
	return sub
}

func staleSeries(cache *monitor.Cache, now time.Time) []models.SeriesStatus {
	unhealthy := cache.Unhealthy(now)
	series := make([]models.SeriesStatus, 0, len(unhealthy))
	for _, entry := range unhealthy {
		s := models.SeriesStatus{
			SiteCode:            entry.SiteCode,
			ParameterCode:       entry.ParameterCode,
			Status:              string(entry.Status),
			ConsecutiveFailures: entry.ConsecutiveFailures,
		}
		if entry.LatestReadingTime != nil {
			ts := models.Timestamp(*entry.LatestReadingTime)
			s.LatestReadingTime = &ts
		}
		series = append(series, s)
	}
	return series
}

func feedStatuses(registry *resilience.Registry) []models.FeedStatus {
	all := registry.GetAllHealth()
	feeds := make([]models.FeedStatus, 0, len(all))
	for _, h := range all {
		f := models.FeedStatus{
			Feed:         h.Name,
			CircuitState: h.CircuitState.String(),
		}
		switch {
		case h.IsHealthy():
			f.Status = models.HealthStatusOK
		case h.IsDegraded():
			f.Status = models.HealthStatusDegraded
		default:
			f.Status = models.HealthStatusFail
		}
		if h.LastSuccessAt != nil {
			ts := models.Timestamp(*h.LastSuccessAt)
			f.LastSuccessAt = &ts
		}
		if h.LastFailureAt != nil {
			ts := models.Timestamp(*h.LastFailureAt)
			f.LastFailureAt = &ts
		}
		if h.LastError != "" {
			msg := h.LastError
			f.Message = &msg
		}
		feeds = append(feeds, f)
	}
	return feeds
}
