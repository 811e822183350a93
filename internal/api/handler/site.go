package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riverwatch/riverwatch/internal/analysis"
	"github.com/riverwatch/riverwatch/internal/api/models"
	"github.com/riverwatch/riverwatch/internal/api/response"
	"github.com/riverwatch/riverwatch/internal/reading"
	"github.com/riverwatch/riverwatch/internal/station"
	"github.com/riverwatch/riverwatch/internal/warehouse"
)

// Readings query limits.
const (
	defaultReadingsWindow = 7 * 24 * time.Hour
	maxReadingsWindow     = 120 * 24 * time.Hour
)

// SiteStore is the warehouse surface the site endpoints need.
type SiteStore interface {
	LatestReading(ctx context.Context, siteCode, parameterCode string) (*reading.Reading, error)
	ReadingsBetween(ctx context.Context, siteCode, parameterCode string, start, end time.Time) ([]reading.Reading, error)
	Events(ctx context.Context, siteCode string) ([]analysis.FloodEvent, error)
}

// SiteHandler serves the monitored gauge stations.
type SiteHandler struct {
	registry *station.Registry
	store    SiteStore
}

// NewSiteHandler creates a new SiteHandler.
func NewSiteHandler(registry *station.Registry, store SiteStore) *SiteHandler {
	return &SiteHandler{registry: registry, store: store}
}

// ListSites handles GET /v1/sites.
func (h *SiteHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	stations := h.registry.Stations()
	list := models.SiteList{Sites: make([]models.SiteSummary, 0, len(stations))}
	for _, s := range stations {
		list.Sites = append(list.Sites, siteSummary(s))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetSite handles GET /v1/sites/{siteCode}. The detail includes the
// freshest stage and discharge readings and the flood classification of
// the current stage.
func (h *SiteHandler) GetSite(w http.ResponseWriter, r *http.Request) {
	siteCode := chi.URLParam(r, "siteCode")
	st, ok := h.registry.Find(siteCode)
	if !ok {
		response.NotFound(w, r, "unknown site "+siteCode)
		return
	}

	detail := models.SiteDetail{SiteSummary: siteSummary(*st)}

	stage, err := h.latest(r.Context(), siteCode, reading.ParamGageHeight)
	if err != nil {
		response.InternalError(w, r, "load latest stage")
		return
	}
	detail.Stage = stage

	discharge, err := h.latest(r.Context(), siteCode, reading.ParamDischarge)
	if err != nil {
		response.InternalError(w, r, "load latest discharge")
		return
	}
	detail.Discharge = discharge

	if st.Thresholds != nil && stage != nil {
		severity := string(st.Thresholds.Classify(stage.Value))
		above := st.Thresholds.AboveAction(stage.Value)
		detail.Severity = &severity
		detail.AboveAction = &above
	}

	response.JSON(w, r, http.StatusOK, detail)
}

// GetReadings handles GET /v1/sites/{siteCode}/readings. Query parameters:
// parameter (default gage height), start and end as RFC3339 timestamps.
func (h *SiteHandler) GetReadings(w http.ResponseWriter, r *http.Request) {
	siteCode := chi.URLParam(r, "siteCode")
	if _, ok := h.registry.Find(siteCode); !ok {
		response.NotFound(w, r, "unknown site "+siteCode)
		return
	}

	parameterCode := r.URL.Query().Get("parameter")
	if parameterCode == "" {
		parameterCode = reading.ParamGageHeight
	}

	start, end, fieldErrors := readingsWindow(r, time.Now().UTC())
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid readings query", fieldErrors)
		return
	}

	readings, err := h.store.ReadingsBetween(r.Context(), siteCode, parameterCode, start, end)
	if err != nil {
		response.InternalError(w, r, "load readings")
		return
	}

	series := models.ReadingSeries{
		SiteCode:      siteCode,
		ParameterCode: parameterCode,
		Start:         models.Timestamp(start),
		End:           models.Timestamp(end),
		Readings:      make([]models.ReadingPoint, 0, len(readings)),
	}
	for _, rd := range readings {
		series.Readings = append(series.Readings, models.ReadingPoint{
			Time:      models.Timestamp(rd.Time),
			Value:     rd.Value,
			Qualifier: rd.Qualifier,
		})
	}
	if len(readings) > 0 {
		series.Unit = readings[0].Unit
	}

	response.JSON(w, r, http.StatusOK, series)
}

// ListEvents handles GET /v1/sites/{siteCode}/events - the flood-crest
// history for a gauge in crest order.
func (h *SiteHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	siteCode := chi.URLParam(r, "siteCode")
	if _, ok := h.registry.Find(siteCode); !ok {
		response.NotFound(w, r, "unknown site "+siteCode)
		return
	}

	events, err := h.store.Events(r.Context(), siteCode)
	if err != nil {
		response.InternalError(w, r, "load flood events")
		return
	}

	list := models.FloodEventList{
		SiteCode: siteCode,
		Events:   make([]models.FloodEventModel, 0, len(events)),
	}
	for _, event := range events {
		list.Events = append(list.Events, eventModel(event))
	}

	response.JSON(w, r, http.StatusOK, list)
}

func (h *SiteHandler) latest(ctx context.Context, siteCode, parameterCode string) (*models.ObservedValue, error) {
	rd, err := h.store.LatestReading(ctx, siteCode, parameterCode)
	if err != nil {
		if errors.Is(err, warehouse.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &models.ObservedValue{
		Value:     rd.Value,
		Unit:      rd.Unit,
		Time:      models.Timestamp(rd.Time),
		Qualifier: rd.Qualifier,
	}, nil
}

func readingsWindow(r *http.Request, now time.Time) (start, end time.Time, fieldErrors []models.FieldError) {
	end = now
	start = now.Add(-defaultReadingsWindow)

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "start", Message: "must be RFC3339", Code: "INVALID_FORMAT"})
		} else {
			start = parsed.UTC()
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "end", Message: "must be RFC3339", Code: "INVALID_FORMAT"})
		} else {
			end = parsed.UTC()
		}
	}
	if len(fieldErrors) > 0 {
		return start, end, fieldErrors
	}

	if !start.Before(end) {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "start", Message: "start must be before end", Code: "OUT_OF_RANGE"})
	}
	if end.Sub(start) > maxReadingsWindow {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "end", Message: "window exceeds 120 days", Code: "OUT_OF_RANGE"})
	}
	return start, end, fieldErrors
}

func siteSummary(s station.Station) models.SiteSummary {
	summary := models.SiteSummary{
		SiteCode:    s.SiteCode,
		Name:        s.Name,
		Description: s.Description,
		Location:    models.Point{Lat: s.Latitude, Lon: s.Longitude},
	}
	if s.Thresholds != nil {
		summary.Thresholds = &models.FloodThresholds{
			ActionFt:   s.Thresholds.ActionFt,
			FloodFt:    s.Thresholds.FloodFt,
			ModerateFt: s.Thresholds.ModerateFt,
			MajorFt:    s.Thresholds.MajorFt,
		}
	}
	return summary
}

func eventModel(event analysis.FloodEvent) models.FloodEventModel {
	m := models.FloodEventModel{
		SiteCode:    event.SiteCode,
		CrestTime:   models.Timestamp(event.CrestTime),
		PeakStageFt: event.PeakStageFt,
		Severity:    string(event.Severity),
	}
	if event.Precursor != nil {
		m.Precursor = &models.PrecursorSummary{
			Start:               models.Timestamp(event.Precursor.Start),
			End:                 models.Timestamp(event.Precursor.End),
			TotalRiseFt:         event.Precursor.TotalRiseFt,
			RiseDurationHours:   event.Precursor.RiseDurationHours,
			AvgRiseRateFtPerDay: event.Precursor.AvgRiseRateFtPerDay,
			MaxRiseRateFtPerDay: event.Precursor.MaxRiseRateFtPerDay,
		}
	}
	return m
}
