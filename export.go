package umi

import (
	"fmt"
	"os"
	"sort"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Export drivers.
const (
	DriverGeoJSON   = "GeoJSON"
	DriverShapefile = "ESRI Shapefile"
	DriverCityGML   = "CityGML"
)

// Export writes the project's building records to a vector file. GeoJSON
// and shapefile exports carry the footprints in world coordinates with the
// source attributes and the resolved template name; the city model export
// carries the extruded solids in local coordinates.
func (p *Project) Export(path, driver string) error {
	switch driver {
	case DriverGeoJSON:
		return p.exportGeoJSON(path)
	case DriverShapefile:
		return p.exportShapefile(path)
	case DriverCityGML:
		return p.exportCityGML(path)
	default:
		return fmt.Errorf("unknown export driver %q", driver)
	}
}

func (p *Project) exportGeoJSON(path string) error {
	fc := geojson.NewFeatureCollection()
	for _, rec := range p.Records {
		world := ProjectGeometry(rec.Footprint, p.Projection.ToWorld)
		f := geojson.NewFeature(world)
		for k, v := range rec.Attrs {
			f.Properties[k] = v
		}
		f.Properties["TemplateName"] = rec.Template
		fc.Append(f)
	}
	raw, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// exportFields is the sorted union of attribute names across all records,
// with the template name last.
func (p *Project) exportFields() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, rec := range p.Records {
		for k := range rec.Attrs {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)
	return append(fields, "TemplateName")
}

func (p *Project) exportShapefile(path string) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return err
	}
	defer w.Close()

	fields := p.exportFields()
	shpFields := make([]shp.Field, len(fields))
	for i, name := range fields {
		// dBASE caps field names at ten characters.
		short := name
		if len(short) > 10 {
			short = short[:10]
		}
		shpFields[i] = shp.StringField(short, 80)
	}
	w.SetFields(shpFields)

	for _, rec := range p.Records {
		world := ProjectGeometry(rec.Footprint, p.Projection.ToWorld).(orb.Polygon)
		parts := make([][]shp.Point, len(world))
		for i, ring := range world {
			// exterior rings clockwise, holes counter-clockwise
			area := ringArea(closeRing(ring))
			if (i == 0 && area > 0) || (i > 0 && area < 0) {
				ring = reversedRing(ring)
			}
			pts := make([]shp.Point, len(ring))
			for j, pt := range ring {
				pts[j] = shp.Point{X: pt[0], Y: pt[1]}
			}
			parts[i] = pts
		}
		row := w.Write((*shp.Polygon)(shp.NewPolyLine(parts)))
		for i, name := range fields {
			var value string
			if name == "TemplateName" {
				value = rec.Template
			} else if v, ok := rec.Attrs[name]; ok {
				value = attributeKey(v)
			}
			if err := w.WriteAttribute(int(row), i, value); err != nil {
				return err
			}
		}
	}
	return nil
}
