package station

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Registry is the validated, read-only set of monitored sites.
type Registry struct {
	stations   []Station
	byCode     map[string]*Station
	structures []Structure
	weather    []WeatherStation
}

type registryFile struct {
	Stations        []Station        `toml:"stations"`
	Structures      []Structure      `toml:"structures"`
	WeatherStations []WeatherStation `toml:"weather_stations"`
}

// Load reads and validates a TOML registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	return New(file.Stations, file.Structures, file.WeatherStations)
}

// New builds a registry from already-decoded entries, validating site codes
// and thresholds.
func New(stations []Station, structures []Structure, weather []WeatherStation) (*Registry, error) {
	if len(stations) == 0 {
		return nil, fmt.Errorf("registry contains no stations")
	}

	r := &Registry{
		stations:   stations,
		byCode:     make(map[string]*Station, len(stations)),
		structures: structures,
		weather:    weather,
	}

	for i := range r.stations {
		s := &r.stations[i]
		if s.SiteCode == "" {
			return nil, fmt.Errorf("station %q has no site code", s.Name)
		}
		if _, dup := r.byCode[s.SiteCode]; dup {
			return nil, fmt.Errorf("duplicate site code %s", s.SiteCode)
		}
		if s.Thresholds != nil {
			if err := s.Thresholds.Validate(); err != nil {
				return nil, fmt.Errorf("station %s: %w", s.SiteCode, err)
			}
		}
		r.byCode[s.SiteCode] = s
	}

	for _, st := range structures {
		if st.CwmsLocation == "" || st.Office == "" {
			return nil, fmt.Errorf("structure %q missing CWMS location or office", st.Name)
		}
	}

	return r, nil
}

// Find returns the station for a site code.
func (r *Registry) Find(siteCode string) (*Station, bool) {
	s, ok := r.byCode[siteCode]
	return s, ok
}

// Stations returns all gauge stations in file order.
func (r *Registry) Stations() []Station {
	return r.stations
}

// SiteCodes returns the gauge site codes in file order.
func (r *Registry) SiteCodes() []string {
	codes := make([]string, len(r.stations))
	for i, s := range r.stations {
		codes[i] = s.SiteCode
	}
	return codes
}

// Structures returns the managed structures polled via CWMS.
func (r *Registry) Structures() []Structure {
	return r.structures
}

// WeatherStations returns the ASOS stations.
func (r *Registry) WeatherStations() []WeatherStation {
	return r.weather
}
