package umi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEPW = `LOCATION,Boston Logan IntL Arpt,MA,USA,TMY3,725090,42.36,-71.01,-5.0,6.0
DESIGN CONDITIONS,0
TYPICAL/EXTREME PERIODS,0
GROUND TEMPERATURES,0
HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0
COMMENTS 1,
COMMENTS 2,
DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31
`

func TestParseEPW(t *testing.T) {
	epw, err := ParseEPW([]byte(sampleEPW))
	require.NoError(t, err)

	assert.Equal(t, "Boston Logan IntL Arpt", epw.Location.City)
	assert.Equal(t, "MA", epw.Location.State)
	assert.Equal(t, "USA", epw.Location.Country)
	assert.Equal(t, "725090", epw.Location.WMO)
	assert.InDelta(t, 42.36, epw.Location.Latitude, 1e-9)
	assert.InDelta(t, -71.01, epw.Location.Longitude, 1e-9)
	assert.InDelta(t, -5.0, epw.Location.TimeZone, 1e-9)
	assert.InDelta(t, 6.0, epw.Location.Elevation, 1e-9)
	assert.Equal(t, []byte(sampleEPW), epw.Bytes())
}

func TestParseEPWErrors(t *testing.T) {
	_, err := ParseEPW([]byte("DATA PERIODS,1,1\n"))
	assert.Error(t, err)

	_, err = ParseEPW([]byte("LOCATION,City,State,Country\n"))
	assert.Error(t, err)

	_, err = ParseEPW([]byte("LOCATION,City,ST,US,TMY3,1,not-a-number,2,3,4\n"))
	assert.Error(t, err)
}

func TestLoadEPW(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boston.epw")
	require.NoError(t, os.WriteFile(path, []byte(sampleEPW), 0644))

	epw, err := LoadEPW(path)
	require.NoError(t, err)
	assert.Equal(t, "boston.epw", epw.Name)
	assert.Equal(t, "Boston Logan IntL Arpt", epw.Location.City)

	_, err = LoadEPW(filepath.Join(t.TempDir(), "missing.epw"))
	assert.Error(t, err)
}

func TestParseStationIndex(t *testing.T) {
	catalogue := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [-71.01, 42.36]},
				"properties": {"epw": "<a href=https://example.org/boston.epw>Download</a>"}
			},
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [2.35, 48.85]},
				"properties": {"epw": "<a href='https://example.org/paris.epw'>Download</a>"}
			},
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [0, 0]},
				"properties": {"epw": "no link here"}
			}
		]
	}`
	stations, err := parseStationIndex([]byte(catalogue))
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "https://example.org/boston.epw", stations[0].url)
	assert.InDelta(t, 42.36, stations[0].lat, 1e-9)
	assert.InDelta(t, -71.01, stations[0].lon, 1e-9)
	assert.Equal(t, "https://example.org/paris.epw", stations[1].url)
}

func TestParseStationIndexNoLinks(t *testing.T) {
	catalogue := `{"type": "FeatureCollection", "features": []}`
	_, err := parseStationIndex([]byte(catalogue))
	assert.Error(t, err)
}
