package umi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geoSquare(lon, lat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat},
	}}
}

// writeFixtureDataset writes a small geographic footprint dataset: two
// resolvable buildings, one unresolvable, one two-part building and one
// feature without a height that must still stretch the site boundary.
func writeFixtureDataset(t *testing.T) string {
	t.Helper()
	fc := geojson.NewFeatureCollection()

	add := func(g orb.Geometry, props map[string]interface{}) {
		f := geojson.NewFeature(g)
		for k, v := range props {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	add(geoSquare(-71.0010, 42.3600, 0.0002), map[string]interface{}{
		"ID": 1.0, "Height": 12.0, "use_type": "COMMERCIAL", "year_built": 1948.0,
	})
	add(geoSquare(-71.0005, 42.3600, 0.0002), map[string]interface{}{
		"ID": 2.0, "Height": 6.0, "use_type": "RESIDENTIAL", "year_built": 1970.0,
	})
	add(geoSquare(-71.0000, 42.3600, 0.0002), map[string]interface{}{
		"ID": 3.0, "Height": 9.0, "use_type": "MIXEDUSE", "year_built": 1948.0,
	})
	add(orb.MultiPolygon{
		geoSquare(-71.0010, 42.3605, 0.0002),
		geoSquare(-71.0005, 42.3605, 0.0002),
	}, map[string]interface{}{
		"ID": 4.0, "Height": 15.0, "use_type": "COMMERCIAL", "year_built": 1970.0,
	})
	// no height, but its footprint pushes the boundary north-east
	add(geoSquare(-70.9990, 42.3620, 0.0002), map[string]interface{}{
		"ID": 5.0, "use_type": "COMMERCIAL", "year_built": 1948.0,
	})

	raw, err := fc.MarshalJSON()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "footprints.geojson")
	require.NoError(t, os.WriteFile(path, raw, 0644))
	return path
}

func writeFixtureTemplateLib(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lib.json")
	raw := `{"BuildingTemplates": [{"Name": "B_Off_0"}, {"Name": "B_Off_1"},
		{"Name": "B_Res_0_WoodFrame"}, {"Name": "B_Res_1_WoodFrame"}]}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))
	return path
}

func fixtureProject(t *testing.T) *Project {
	t.Helper()
	m, err := NewTemplateMap([]byte(depth2Map), []string{"use_type", "year_built"})
	require.NoError(t, err)

	p, err := FromGIS(writeFixtureDataset(t), ConvertOptions{
		HeightColumn: "Height",
		FIDColumn:    "ID",
		TemplateMap:  m,
		TemplateLib:  writeFixtureTemplateLib(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestFromGIS(t *testing.T) {
	p := fixtureProject(t)

	// four features with heights, one of them split in two parts
	assert.Len(t, p.Records, 5)
	assert.Equal(t, "footprints", p.Name)
	assert.True(t, p.Projection.Geographic)

	buildings := p.ObjectsOnLayer(LayerBuildings)
	shading := p.ObjectsOnLayer(LayerShading)
	assert.Len(t, buildings, 4)
	assert.Len(t, shading, 1)

	// split parts share the source feature's id
	var partNames []string
	for _, obj := range buildings {
		if obj.Name == "4" {
			partNames = append(partNames, obj.Name)
		}
	}
	assert.Len(t, partNames, 2)
}

func TestFromGISShadingRouting(t *testing.T) {
	p := fixtureProject(t)

	shading := p.ObjectsOnLayer(LayerShading)
	require.Len(t, shading, 1)
	assert.Equal(t, "3", shading[0].Name)
	assert.Equal(t, "", shading[0].Attrs["TemplateName"])

	for _, obj := range p.ObjectsOnLayer(LayerBuildings) {
		assert.NotEmpty(t, obj.Attrs["TemplateName"], "object %s", obj.Name)
	}
}

func TestFromGISBoundaryCoversUnfilteredInputs(t *testing.T) {
	p := fixtureProject(t)

	require.NotEmpty(t, p.WorldBoundary)
	assert.True(t, p.WorldBoundary.Closed())

	// the heightless feature's corner must sit on the hull
	var maxLon float64 = -180
	for _, pt := range p.WorldBoundary {
		if pt[0] > maxLon {
			maxLon = pt[0]
		}
	}
	assert.InDelta(t, -70.9988, maxLon, 1e-9)
}

func TestFromGISBoundaryObject(t *testing.T) {
	p := fixtureProject(t)

	boundary := p.ObjectsOnLayer(LayerSiteBoundary)
	require.Len(t, boundary, 1)
	assert.Equal(t, "Convex hull boundary", boundary[0].Name)
	assert.NotEmpty(t, boundary[0].Polyline)
}

func TestFromGISShoeboxDefaults(t *testing.T) {
	p := fixtureProject(t)

	obj := p.ObjectsOnLayer(LayerBuildings)[0]
	assert.Equal(t, "3", obj.Attrs["CoreDepth"])
	assert.Equal(t, "0.4", obj.Attrs["WindowToWallRatioN"])
	assert.Equal(t, "UMI Shoeboxer (default)", obj.Attrs["EnergySimulatorName"])
	// source attributes ride along as strings
	assert.Equal(t, "COMMERCIAL", obj.Attrs["use_type"])
}

func TestFromGISOptionValidation(t *testing.T) {
	_, err := FromGIS("nope.geojson", ConvertOptions{})
	assert.Error(t, err)

	_, err = FromGIS("nope.geojson", ConvertOptions{HeightColumn: "Height"})
	assert.Error(t, err)

	m, err := NewTemplateMap([]byte(depth2Map), []string{"use_type"})
	require.NoError(t, err)
	_, err = FromGIS("nope.geojson", ConvertOptions{
		HeightColumn:   "Height",
		TemplateMap:    m,
		TemplateColumn: "TemplateName",
	})
	assert.Error(t, err)
}

func TestFromGISTemplateColumn(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(geoSquare(-71.0, 42.36, 0.0002))
	f.Properties["Height"] = 10.0
	f.Properties["Template"] = "B_Res_0"
	fc.Append(f)
	g := geojson.NewFeature(geoSquare(-71.0005, 42.36, 0.0002))
	g.Properties["Height"] = 10.0
	fc.Append(g)

	raw, err := fc.MarshalJSON()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "columns.geojson")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	p, err := FromGIS(path, ConvertOptions{
		HeightColumn:   "Height",
		TemplateColumn: "Template",
	})
	require.NoError(t, err)
	defer p.Close()

	assert.Len(t, p.ObjectsOnLayer(LayerBuildings), 1)
	assert.Len(t, p.ObjectsOnLayer(LayerShading), 1)
}
