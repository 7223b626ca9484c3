package umi

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	geo "github.com/kellydunn/golang-geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// EPW is an EnergyPlus weather file. Only the LOCATION header is parsed;
// the rest of the file is carried as-is.
type EPW struct {
	Name     string
	Location EPWLocation
	raw      []byte
}

// EPWLocation is the first header record of a weather file.
type EPWLocation struct {
	City      string
	State     string
	Country   string
	Source    string
	WMO       string
	Latitude  float64
	Longitude float64
	TimeZone  float64
	Elevation float64
}

// LoadEPW reads a weather file from disk.
func LoadEPW(path string) (*EPW, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	epw, err := ParseEPW(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	epw.Name = filepath.Base(path)
	return epw, nil
}

// ParseEPW parses the LOCATION header and keeps the raw bytes.
func ParseEPW(raw []byte) (*EPW, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	rec, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header record: %w", err)
	}
	if len(rec) < 10 || rec[0] != "LOCATION" {
		return nil, fmt.Errorf("file does not start with a LOCATION record")
	}
	loc := EPWLocation{
		City:    rec[1],
		State:   rec[2],
		Country: rec[3],
		Source:  rec[4],
		WMO:     rec[5],
	}
	fields := []struct {
		dst *float64
		raw string
	}{
		{&loc.Latitude, rec[6]},
		{&loc.Longitude, rec[7]},
		{&loc.TimeZone, rec[8]},
		{&loc.Elevation, rec[9]},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("bad LOCATION field %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	return &EPW{Location: loc, raw: raw}, nil
}

// Bytes returns the raw file content.
func (e *EPW) Bytes() []byte {
	return e.raw
}

// nrelStationIndex lists the climate.onebuilding/EnergyPlus station
// catalogue as a GeoJSON feature collection whose descriptions embed
// download links.
const nrelStationIndex = "https://github.com/NREL/EnergyPlus/raw/develop/weather/master.geojson"

var epwHrefPattern = regexp.MustCompile(`href=["']?([^"' >]+\.epw)`)

// FetchNREL downloads the weather file of the station nearest to the given
// location from the NREL catalogue.
func FetchNREL(ctx context.Context, lat, lon float64) (*EPW, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	index, err := fetchStationIndex(ctx, client)
	if err != nil {
		return nil, err
	}
	here := geo.NewPoint(lat, lon)
	var (
		bestURL  string
		bestDist = -1.0
	)
	for _, st := range index {
		d := here.GreatCircleDistance(geo.NewPoint(st.lat, st.lon))
		if bestDist < 0 || d < bestDist {
			bestDist = d
			bestURL = st.url
		}
	}
	if bestURL == "" {
		return nil, fmt.Errorf("no station with a weather file found in the catalogue")
	}
	raw, err := fetchBytes(ctx, client, bestURL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", bestURL, err)
	}
	epw, err := ParseEPW(raw)
	if err != nil {
		return nil, fmt.Errorf("station file %s: %w", bestURL, err)
	}
	epw.Name = filepath.Base(bestURL)
	return epw, nil
}

type weatherStation struct {
	lat, lon float64
	url      string
}

type stationFeature struct {
	lat, lon    float64
	description string
}

// unmarshalPointCollection extracts point features and their "epw"
// property, which holds an HTML download link.
func unmarshalPointCollection(raw []byte) ([]stationFeature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, err
	}
	var out []stationFeature
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		desc, _ := f.Properties["epw"].(string)
		out = append(out, stationFeature{lat: pt.Lat(), lon: pt.Lon(), description: desc})
	}
	return out, nil
}

func fetchStationIndex(ctx context.Context, client *http.Client) ([]weatherStation, error) {
	raw, err := fetchBytes(ctx, client, nrelStationIndex)
	if err != nil {
		return nil, fmt.Errorf("fetching station catalogue: %w", err)
	}
	return parseStationIndex(raw)
}

func parseStationIndex(raw []byte) ([]weatherStation, error) {
	fc, err := unmarshalPointCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing station catalogue: %w", err)
	}
	var stations []weatherStation
	for _, f := range fc {
		m := epwHrefPattern.FindStringSubmatch(f.description)
		if m == nil {
			continue
		}
		stations = append(stations, weatherStation{lat: f.lat, lon: f.lon, url: m[1]})
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("station catalogue holds no weather file links")
	}
	return stations, nil
}

func fetchBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
