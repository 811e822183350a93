// Package zone groups sensors into hydrologically meaningful zones, each
// with a lead-time window relative to the monitored reach. Zones are loaded
// from a TOML file and read-only afterwards.
package zone

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Sensor roles within a zone.
const (
	RoleDirect   = "direct"   // measures the monitored reach itself
	RoleBoundary = "boundary" // downstream boundary condition (backwater source)
	RolePrecip   = "precip"   // rainfall context
	RoleProxy    = "proxy"    // upstream proxy for what is coming
)

// Sensor references one observed series. Exactly one of USGSID,
// CwmsLocation, or ASOSID identifies the upstream source.
type Sensor struct {
	USGSID       string  `toml:"usgs_id" json:"usgs_id,omitempty"`
	CwmsLocation string  `toml:"cwms_location" json:"cwms_location,omitempty"`
	ASOSID       string  `toml:"asos_id" json:"asos_id,omitempty"`
	Source       string  `toml:"source" json:"source"`
	Type         string  `toml:"type" json:"type"`
	Role         string  `toml:"role" json:"role"`
	Location     string  `toml:"location" json:"location"`
	Latitude     float64 `toml:"latitude" json:"latitude"`
	Longitude    float64 `toml:"longitude" json:"longitude"`
}

// Zone is a named group of sensors with a forecast lead-time window.
type Zone struct {
	ID               int      `toml:"id" json:"id"`
	Name             string   `toml:"name" json:"name"`
	Description      string   `toml:"description" json:"description"`
	LeadTimeHoursMin int      `toml:"lead_time_hours_min" json:"lead_time_hours_min"`
	LeadTimeHoursMax int      `toml:"lead_time_hours_max" json:"lead_time_hours_max"`
	AlertCondition   string   `toml:"alert_condition" json:"alert_condition"`
	Sensors          []Sensor `toml:"sensors" json:"sensors"`
}

type zonesFile struct {
	Zones []Zone `toml:"zones"`
}

// Load reads and validates a TOML zones file.
func Load(path string) ([]Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones %s: %w", path, err)
	}

	var file zonesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse zones %s: %w", path, err)
	}
	if len(file.Zones) == 0 {
		return nil, fmt.Errorf("zones file %s contains no zones", path)
	}

	seen := make(map[int]bool, len(file.Zones))
	for _, z := range file.Zones {
		if seen[z.ID] {
			return nil, fmt.Errorf("duplicate zone id %d", z.ID)
		}
		seen[z.ID] = true
		if z.LeadTimeHoursMin > z.LeadTimeHoursMax {
			return nil, fmt.Errorf("zone %d: lead time min %d exceeds max %d", z.ID, z.LeadTimeHoursMin, z.LeadTimeHoursMax)
		}
		for _, s := range z.Sensors {
			if s.USGSID == "" && s.CwmsLocation == "" && s.ASOSID == "" {
				return nil, fmt.Errorf("zone %d: sensor at %q has no source identifier", z.ID, s.Location)
			}
		}
	}

	return file.Zones, nil
}

// Find returns the zone with the given id.
func Find(zones []Zone, id int) (*Zone, bool) {
	for i := range zones {
		if zones[i].ID == id {
			return &zones[i], true
		}
	}
	return nil, false
}
