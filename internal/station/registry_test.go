package station

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryTOML = `
[[stations]]
site_code = "05568500"
name = "Illinois River at Kingston Mines, IL"
description = "Primary forecast point below Peoria"
latitude = 40.5545
longitude = -89.7793

[stations.thresholds]
action_stage_ft = 14.0
flood_stage_ft = 16.0
moderate_flood_stage_ft = 20.0
major_flood_stage_ft = 24.0

[[stations]]
site_code = "05567500"
name = "Illinois River at Peoria, IL"
description = "Peoria pool gauge, no published flood stages"
latitude = 40.6889
longitude = -89.5862

[[structures]]
name = "Peoria Lock and Dam"
office = "MVR"
cwms_location = "Peoria Pool"
river_mile = 157.7
normal_pool_ft = 440.0

[[weather_stations]]
id = "PIA"
name = "Peoria International Airport"
network = "IL_ASOS"
latitude = 40.6642
longitude = -89.6933
`

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	reg, err := Load(writeRegistry(t, registryTOML))
	require.NoError(t, err)

	assert.Equal(t, []string{"05568500", "05567500"}, reg.SiteCodes())

	kingston, ok := reg.Find("05568500")
	require.True(t, ok)
	require.NotNil(t, kingston.Thresholds)
	assert.Equal(t, 16.0, kingston.Thresholds.FloodFt)

	peoria, ok := reg.Find("05567500")
	require.True(t, ok)
	assert.Nil(t, peoria.Thresholds)

	_, ok = reg.Find("00000000")
	assert.False(t, ok)

	require.Len(t, reg.Structures(), 1)
	assert.Equal(t, "MVR", reg.Structures()[0].Office)
	require.Len(t, reg.WeatherStations(), 1)
	assert.Equal(t, "PIA", reg.WeatherStations()[0].ID)
}

func TestLoadRejectsNonAscendingThresholds(t *testing.T) {
	bad := `
[[stations]]
site_code = "05568000"
name = "Illinois River at Chillicothe, IL"

[stations.thresholds]
action_stage_ft = 14.0
flood_stage_ft = 14.0
moderate_flood_stage_ft = 19.0
major_flood_stage_ft = 23.0
`
	_, err := Load(writeRegistry(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not strictly ascending")
}

func TestLoadRejectsDuplicateSiteCodes(t *testing.T) {
	bad := `
[[stations]]
site_code = "05568500"
name = "a"

[[stations]]
site_code = "05568500"
name = "b"
`
	_, err := Load(writeRegistry(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate site code")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestThresholdsClassify(t *testing.T) {
	th := Thresholds{ActionFt: 16.0, FloodFt: 18.0, ModerateFt: 20.0, MajorFt: 22.0}

	tests := []struct {
		stage float64
		want  Severity
	}{
		{17.5, SeverityNone},
		{18.5, SeverityFlood},
		{20.5, SeverityModerate},
		{24.0, SeverityMajor},
		{18.0, SeverityFlood},
		{22.0, SeverityMajor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.stage), "stage %.1f", tt.stage)
	}

	assert.True(t, th.AboveAction(16.0))
	assert.False(t, th.AboveAction(15.9))
}
