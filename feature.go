package umi

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is one input record: a polygonal geometry plus its attribute
// mapping.
type Feature struct {
	Geometry orb.Geometry
	Attrs    map[string]interface{}
}

// Float returns the named attribute as a number. Strings holding numbers
// are parsed, which is how dbf attributes arrive.
func (f Feature) Float(key string) (float64, bool) {
	v, ok := f.Attrs[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// String returns the named attribute formatted as a string.
func (f Feature) String(key string) (string, bool) {
	v, ok := f.Attrs[key]
	if !ok || v == nil {
		return "", false
	}
	return attributeKey(v), true
}

// CloneAttrs copies the attribute mapping so split parts do not alias the
// parent.
func (f Feature) CloneAttrs() map[string]interface{} {
	out := make(map[string]interface{}, len(f.Attrs))
	for k, v := range f.Attrs {
		out[k] = v
	}
	return out
}

// ReadDataset loads a vector dataset into features. GeoJSON, ESRI
// shapefiles and zipped shapefiles are supported; a "zip://" prefix on the
// path is accepted for compatibility with GIS tooling conventions.
func ReadDataset(path string) ([]Feature, error) {
	path = strings.TrimPrefix(path, "zip://")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return readGeoJSON(path)
	case ".shp":
		return readShapefile(path)
	case ".zip":
		return readZippedShapefile(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", path)
	}
}

func readGeoJSON(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	feats := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		attrs := make(map[string]interface{}, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		feats = append(feats, Feature{Geometry: f.Geometry, Attrs: attrs})
	}
	return feats, nil
}

func readShapefile(path string) ([]Feature, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	var feats []Feature
	for r.Next() {
		row, shape := r.Shape()
		geom := shapeToGeometry(shape)
		if geom == nil {
			continue
		}
		attrs := make(map[string]interface{}, len(fields))
		for col, field := range fields {
			attrs[field.String()] = strings.TrimSpace(r.ReadAttribute(row, col))
		}
		feats = append(feats, Feature{Geometry: geom, Attrs: attrs})
	}
	return feats, nil
}

func readZippedShapefile(path string) ([]Feature, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()

	tmp, err := os.MkdirTemp("", "gis2umi-shp")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	var shpPath string
	for _, entry := range zr.File {
		name := filepath.Base(entry.Name)
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".shp" && ext != ".shx" && ext != ".dbf" && ext != ".prj" {
			continue
		}
		dst := filepath.Join(tmp, name)
		if err := extractZipEntry(entry, dst); err != nil {
			return nil, fmt.Errorf("extracting %s: %w", entry.Name, err)
		}
		if ext == ".shp" {
			shpPath = dst
		}
	}
	if shpPath == "" {
		return nil, fmt.Errorf("no .shp entry found in %s", path)
	}
	return readShapefile(shpPath)
}

func extractZipEntry(entry *zip.File, dst string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

// shapeToGeometry converts a shapefile record to an orb geometry.
// Shapefile polygon parts use ring winding to mark holes: clockwise rings
// open a new polygon, counter-clockwise rings are holes of the previous
// one.
func shapeToGeometry(shape shp.Shape) orb.Geometry {
	switch s := shape.(type) {
	case *shp.Polygon:
		return partsToPolygonal(s.Parts, s.Points)
	case *shp.PolygonZ:
		return partsToPolygonal(s.Parts, s.Points)
	case *shp.PolyLine:
		if len(s.Points) == 0 {
			return nil
		}
		ls := make(orb.LineString, len(s.Points))
		for i, p := range s.Points {
			ls[i] = orb.Point{p.X, p.Y}
		}
		return ls
	case *shp.Point:
		return orb.Point{s.X, s.Y}
	default:
		return nil
	}
}

func partsToPolygonal(parts []int32, points []shp.Point) orb.Geometry {
	var polys orb.MultiPolygon
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		ring := make(orb.Ring, 0, end-int(start))
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if len(ring) < 3 {
			continue
		}
		if ringArea(closeRing(ring)) < 0 {
			// clockwise: a new exterior ring
			polys = append(polys, orb.Polygon{ring})
		} else if len(polys) > 0 {
			// counter-clockwise: a hole of the last exterior
			polys[len(polys)-1] = append(polys[len(polys)-1], ring)
		} else {
			// tolerate datasets that ignore the winding convention
			polys = append(polys, orb.Polygon{ring})
		}
	}
	if len(polys) == 0 {
		return nil
	}
	if len(polys) == 1 {
		return polys[0]
	}
	return polys
}
