package umi

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFloat(t *testing.T) {
	f := Feature{Attrs: map[string]interface{}{
		"a": 12.5,
		"b": "7.25",
		"c": " 42 ",
		"d": "tall",
		"e": "",
		"f": nil,
	}}

	v, ok := f.Float("a")
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	v, ok = f.Float("b")
	require.True(t, ok)
	assert.Equal(t, 7.25, v)

	v, ok = f.Float("c")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	for _, key := range []string{"d", "e", "f", "missing"} {
		_, ok := f.Float(key)
		assert.False(t, ok, "key %s", key)
	}
}

func TestReadDatasetGeoJSON(t *testing.T) {
	raw := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]},
				"properties": {"Height": 10, "use_type": "COMMERCIAL"}
			},
			{
				"type": "Feature",
				"geometry": null,
				"properties": {"Height": 5}
			}
		]
	}`
	path := filepath.Join(t.TempDir(), "data.geojson")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	feats, err := ReadDataset(path)
	require.NoError(t, err)
	require.Len(t, feats, 1) // null geometry is skipped

	_, ok := feats[0].Geometry.(orb.Polygon)
	assert.True(t, ok)
	h, ok := feats[0].Float("Height")
	require.True(t, ok)
	assert.Equal(t, 10.0, h)
}

func TestReadDatasetUnsupported(t *testing.T) {
	_, err := ReadDataset("data.gpkg")
	assert.Error(t, err)
}

func TestReadDatasetZipPrefix(t *testing.T) {
	// the zip:// scheme prefix is stripped before dispatch
	_, err := ReadDataset("zip://" + filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

func TestReadDatasetZippedShapefile(t *testing.T) {
	p := fixtureProject(t)
	dir := t.TempDir()
	require.NoError(t, p.Export(filepath.Join(dir, "out.shp"), DriverShapefile))

	zipPath := filepath.Join(dir, "footprints.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		raw, err := os.ReadFile(filepath.Join(dir, "out"+ext))
		require.NoError(t, err, "sidecar %s", ext)
		w, err := zw.Create("out" + ext)
		require.NoError(t, err)
		_, err = w.Write(raw)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	feats, err := ReadDataset("zip://" + zipPath)
	require.NoError(t, err)
	require.Len(t, feats, len(p.Records))

	commercial := 0
	for _, f := range feats {
		assert.True(t, ValidGeometry(f.Geometry))
		if v, ok := f.Attrs["use_type"].(string); ok && v == "COMMERCIAL" {
			commercial++
		}
	}
	assert.Equal(t, 3, commercial)
}
