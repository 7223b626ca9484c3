package umi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Object is one entry of the project document: a named geometry on a
// layer, carrying its source attributes as strings.
type Object struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	LayerIndex int               `json:"layer_index"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	Solid      *Solid            `json:"solid,omitempty"`
	Polyline   orb.LineString    `json:"polyline,omitempty"`
	Point      *orb.Point        `json:"point,omitempty"`
}

// DefaultShoeboxSettings are the per-building simulation settings written
// for every record unless the source data overrides them.
var DefaultShoeboxSettings = map[string]string{
	"CoreDepth":             "3",
	"Envr":                  "1",
	"Fdist":                 "1",
	"FloorToFloorHeight":    "3",
	"PerimeterOffset":       "3",
	"RoomWidth":             "3",
	"WindowToWallRatioE":    "0.4",
	"WindowToWallRatioN":    "0.4",
	"WindowToWallRatioRoof": "0",
	"WindowToWallRatioS":    "0.4",
	"WindowToWallRatioW":    "0.4",
	"EnergySimulatorName":   "UMI Shoeboxer (default)",
	"FloorToFloorStrict":    "true",
}

// Project is the top-level aggregate: layers, geometry objects, the site
// boundary, optional street graph and POI sets, and the weather and
// template-library references. Single-owner, not safe for concurrent
// mutation.
type Project struct {
	Name    string
	Layers  *LayerTable
	Objects []*Object
	Records []BuildingRecord

	// Boundary is the site boundary in local model coordinates;
	// WorldBoundary is the same ring in lon/lat degrees when the source
	// dataset was geographic, nil otherwise.
	Boundary      orb.Ring
	WorldBoundary orb.Ring
	Projection    Projection

	EPW         *EPW
	TemplateLib json.RawMessage
	Settings    map[string]interface{}

	StreetGraph *StreetGraph
	POIs        map[string][]Feature

	db     *settingsDB
	tmpDir string
	log    *zap.Logger
}

// ConvertOptions configures FromGIS.
type ConvertOptions struct {
	// Name of the project; defaults to the input file's base name.
	Name string
	// HeightColumn names the attribute holding extrusion heights. Required.
	HeightColumn string
	// FIDColumn optionally names the attribute used as record id; a serial
	// id is assigned otherwise.
	FIDColumn string
	// TemplateMap resolves attribute values to template names. Exactly one
	// of TemplateMap and TemplateColumn must be set.
	TemplateMap *TemplateMap
	// TemplateColumn names an attribute that carries template names
	// directly.
	TemplateColumn string
	// TemplateLib is the path of the template library JSON file.
	TemplateLib string
	// EPW is the path of the weather file. When empty and FetchWeather is
	// set, the nearest station is looked up from the site location.
	EPW          string
	FetchWeather bool

	Logger *zap.Logger
}

// NewProject creates an empty project with the base layer tree and a fresh
// settings store. Callers own the project and should Close it when done.
func NewProject(name string, log *zap.Logger) (*Project, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tmpDir, err := os.MkdirTemp("", "gis2umi-")
	if err != nil {
		return nil, err
	}
	db, err := openSettingsDB(filepath.Join(tmpDir, "umi.sqlite3"))
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}
	return &Project{
		Name:     name,
		Layers:   NewLayerTable(),
		Settings: make(map[string]interface{}),
		POIs:     make(map[string][]Feature),
		db:       db,
		tmpDir:   tmpDir,
		log:      log,
	}, nil
}

// Close releases the settings store and the project's scratch directory.
func (p *Project) Close() error {
	var err error
	if p.db != nil {
		err = p.db.Close()
		p.db = nil
	}
	if p.tmpDir != "" {
		os.RemoveAll(p.tmpDir)
		p.tmpDir = ""
	}
	return err
}

// FromGIS builds a project from a vector dataset of building footprints.
// Features with invalid geometry or without the height attribute are
// dropped, multi-part geometries are split, footprints are extruded to
// their height and template names are resolved; records without a template
// land on the shading layer. The site boundary is the convex hull of all
// valid input footprints, filtered or not.
func FromGIS(path string, opts ConvertOptions) (*Project, error) {
	if opts.HeightColumn == "" {
		return nil, fmt.Errorf("a height attribute column is required")
	}
	var resolver TemplateResolver
	switch {
	case opts.TemplateMap != nil && opts.TemplateColumn != "":
		return nil, fmt.Errorf("set either a template map or a template column, not both")
	case opts.TemplateMap != nil:
		resolver = opts.TemplateMap
	case opts.TemplateColumn != "":
		resolver = ColumnResolver{Column: opts.TemplateColumn}
	default:
		return nil, fmt.Errorf("a template map or template column is required")
	}

	feats, err := ReadDataset(path)
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	p, err := NewProject(name, opts.Logger)
	if err != nil {
		return nil, err
	}
	if err := p.assemble(feats, opts, resolver); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Project) assemble(feats []Feature, opts ConvertOptions, resolver TemplateResolver) error {
	// The boundary hull spans every valid input geometry, regardless of
	// which records survive the height and template filters.
	var worldPts []orb.Point
	for _, f := range feats {
		if ValidGeometry(f.Geometry) {
			worldPts = append(worldPts, CollectPoints(f.Geometry)...)
		}
	}
	if len(worldPts) == 0 {
		return fmt.Errorf("dataset has no valid polygonal features")
	}
	worldHull := ConvexHull(worldPts)
	bound := orb.MultiPoint(worldPts).Bound()
	p.Projection = Projection{Origin: RingCentroid(worldHull), Geographic: looksGeographic(bound)}
	if p.Projection.Geographic {
		p.WorldBoundary = worldHull
	}
	p.Boundary = ProjectGeometry(worldHull, p.Projection.ToLocal).(orb.Ring)

	assignFIDs(feats, opts.FIDColumn)
	local := make([]Feature, len(feats))
	for i, f := range feats {
		local[i] = Feature{
			Geometry: ProjectGeometry(f.Geometry, p.Projection.ToLocal),
			Attrs:    f.Attrs,
		}
	}

	pipeline := ResolveTemplates(
		ExtrudeAll(
			SplitParts(FilterValid(Sequence(local), opts.HeightColumn, p.log)),
			opts.HeightColumn, p.log),
		resolver)
	for rec := range pipeline {
		p.addBuilding(rec)
	}
	p.log.Info("building records assembled",
		zap.Int("records", len(p.Records)), zap.Int("inputs", len(feats)))

	p.AddSiteBoundary()
	p.Settings["project-settings"] = map[string]interface{}{
		"OriginalProjectedOrigin": []float64{p.Projection.Origin[0], p.Projection.Origin[1]},
		"Geographic":              p.Projection.Geographic,
	}

	if opts.TemplateLib != "" {
		raw, err := os.ReadFile(opts.TemplateLib)
		if err != nil {
			return fmt.Errorf("reading template library: %w", err)
		}
		if !json.Valid(raw) {
			return fmt.Errorf("template library %s is not valid JSON", opts.TemplateLib)
		}
		p.TemplateLib = raw
	}

	if opts.EPW != "" {
		epw, err := LoadEPW(opts.EPW)
		if err != nil {
			return fmt.Errorf("reading weather file: %w", err)
		}
		p.EPW = epw
	} else if opts.FetchWeather && p.Projection.Geographic {
		center := p.Projection.Origin
		epw, err := FetchNREL(context.Background(), center.Lat(), center.Lon())
		if err != nil {
			// Like the weather-file fallback upstream: log and carry on
			// without a weather reference.
			p.log.Error("unable to retrieve weather file", zap.Error(err))
		} else {
			p.EPW = epw
		}
	}

	return p.db.ReplaceObjectSettings(p.Objects)
}

// addBuilding adds a record's solid as a document object on the building
// layer, or on the shading layer when its template is unresolved.
func (p *Project) addBuilding(rec BuildingRecord) {
	layerPath := LayerBuildings
	if rec.Template == "" {
		layerPath = LayerShading
	}
	attrs := make(map[string]string, len(rec.Attrs)+len(DefaultShoeboxSettings)+1)
	for k, v := range DefaultShoeboxSettings {
		attrs[k] = v
	}
	for k, v := range rec.Attrs {
		attrs[k] = attributeKey(v)
	}
	attrs["TemplateName"] = rec.Template

	p.Objects = append(p.Objects, &Object{
		ID:         uuid.New(),
		Name:       rec.FID,
		LayerIndex: p.Layers.Add(layerPath).Index,
		Attrs:      attrs,
		Solid:      rec.Solid,
	})
	p.Records = append(p.Records, rec)
}

// AddSiteBoundary adds the convex-hull boundary polyline to the site
// boundary layer. The hull over all footprints approximates the site well
// in most cases.
func (p *Project) AddSiteBoundary() {
	if len(p.Boundary) == 0 {
		return
	}
	p.Objects = append(p.Objects, &Object{
		ID:         uuid.New(),
		Name:       "Convex hull boundary",
		LayerIndex: p.Layers.Add(LayerSiteBoundary).Index,
		Polyline:   orb.LineString(p.Boundary),
	})
}

// addCurve places a polyline object on a layer.
func (p *Project) addCurve(name, layerPath string, line orb.LineString) *Object {
	obj := &Object{
		ID:         uuid.New(),
		Name:       name,
		LayerIndex: p.Layers.Add(layerPath).Index,
		Polyline:   line,
	}
	p.Objects = append(p.Objects, obj)
	return obj
}

// addPoint places a point object on a layer.
func (p *Project) addPoint(name, layerPath string, pt orb.Point) *Object {
	obj := &Object{
		ID:         uuid.New(),
		Name:       name,
		LayerIndex: p.Layers.Add(layerPath).Index,
		Point:      &pt,
	}
	p.Objects = append(p.Objects, obj)
	return obj
}

// addSurface places a zero-height planar solid on a layer.
func (p *Project) addSurface(name, layerPath string, ring orb.Ring) *Object {
	solid := solidFromFace(ring)
	if solid == nil {
		return nil
	}
	obj := &Object{
		ID:         uuid.New(),
		Name:       name,
		LayerIndex: p.Layers.Add(layerPath).Index,
		Solid:      solid,
	}
	p.Objects = append(p.Objects, obj)
	return obj
}

// ObjectsOnLayer returns the objects whose layer matches the full path.
func (p *Project) ObjectsOnLayer(fullPath string) []*Object {
	layer := p.Layers.FindFullPath(fullPath)
	if layer == nil {
		return nil
	}
	var out []*Object
	for _, obj := range p.Objects {
		if obj.LayerIndex == layer.Index {
			out = append(out, obj)
		}
	}
	return out
}
