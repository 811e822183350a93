package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/riverwatch/riverwatch/internal/api/models"
	"github.com/riverwatch/riverwatch/internal/api/response"
	"github.com/riverwatch/riverwatch/internal/zone"
)

// ZoneHandler serves the sensor zones.
type ZoneHandler struct {
	zones []zone.Zone
}

// NewZoneHandler creates a new ZoneHandler.
func NewZoneHandler(zones []zone.Zone) *ZoneHandler {
	return &ZoneHandler{zones: zones}
}

// ListZones handles GET /v1/zones.
func (h *ZoneHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	list := models.ZoneList{Zones: make([]models.ZoneSummary, 0, len(h.zones))}
	for _, z := range h.zones {
		list.Zones = append(list.Zones, zoneSummary(z))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetZone handles GET /v1/zones/{zoneId}.
func (h *ZoneHandler) GetZone(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "zoneId")
	id, err := strconv.Atoi(raw)
	if err != nil {
		response.BadRequest(w, r, "invalid zone id", []models.FieldError{
			{Field: "zoneId", Message: "must be an integer", Code: "INVALID_FORMAT"},
		})
		return
	}

	z, ok := zone.Find(h.zones, id)
	if !ok {
		response.NotFound(w, r, "unknown zone "+raw)
		return
	}

	detail := models.ZoneDetail{
		ZoneSummary:    zoneSummary(*z),
		AlertCondition: z.AlertCondition,
		Sensors:        make([]models.ZoneSensor, 0, len(z.Sensors)),
	}
	for _, s := range z.Sensors {
		detail.Sensors = append(detail.Sensors, models.ZoneSensor{
			SourceID: sensorSourceID(s),
			Source:   s.Source,
			Type:     s.Type,
			Role:     s.Role,
			Location: s.Location,
			Position: models.Point{Lat: s.Latitude, Lon: s.Longitude},
		})
	}

	response.JSON(w, r, http.StatusOK, detail)
}

func zoneSummary(z zone.Zone) models.ZoneSummary {
	return models.ZoneSummary{
		ID:               z.ID,
		Name:             z.Name,
		Description:      z.Description,
		LeadTimeHoursMin: z.LeadTimeHoursMin,
		LeadTimeHoursMax: z.LeadTimeHoursMax,
		SensorCount:      len(z.Sensors),
	}
}

func sensorSourceID(s zone.Sensor) string {
	switch {
	case s.USGSID != "":
		return s.USGSID
	case s.CwmsLocation != "":
		return s.CwmsLocation
	default:
		return s.ASOSID
	}
}
