package umi

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// Archive member names.
const (
	archiveModel      = "model.json"
	archiveGeoJSON    = "sdl-common/project.json"
	archiveSettings   = "sdl-common/project-settings.json"
	archiveTemplates  = "template-library.json"
	archiveSettingsDB = "umi.sqlite3"
	archiveEPWSuffix  = ".epw"
	archiveModelUnits = "Meters"
)

// modelDocument is the serialized form of the project's layer tree and
// geometry objects.
type modelDocument struct {
	Name    string    `json:"name"`
	Units   string    `json:"units"`
	Layers  []*Layer  `json:"layers"`
	Objects []*Object `json:"objects"`
}

type projectSettings struct {
	OriginalProjectedOrigin [2]float64 `json:"OriginalProjectedOrigin"`
	Geographic              bool       `json:"Geographic"`
}

// Save writes the project archive: the model document, the footprint
// collection, the project settings, the template library, the weather file
// and the settings store.
func (p *Project) Save(dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	zw := zip.NewWriter(f)

	writeMember := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	model := modelDocument{
		Name:    p.Name,
		Units:   archiveModelUnits,
		Layers:  p.Layers.All(),
		Objects: p.Objects,
	}
	raw, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}
	if err := writeMember(archiveModel, raw); err != nil {
		return err
	}

	raw, err = p.footprintCollection()
	if err != nil {
		return err
	}
	if err := writeMember(archiveGeoJSON, raw); err != nil {
		return err
	}

	settings := projectSettings{
		OriginalProjectedOrigin: [2]float64{p.Projection.Origin[0], p.Projection.Origin[1]},
		Geographic:              p.Projection.Geographic,
	}
	raw, err = json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := writeMember(archiveSettings, raw); err != nil {
		return err
	}

	if p.TemplateLib != nil {
		if err := writeMember(archiveTemplates, p.TemplateLib); err != nil {
			return err
		}
	}
	if p.EPW != nil {
		name := p.EPW.Name
		if name == "" {
			name = p.Name + archiveEPWSuffix
		}
		if err := writeMember(name, p.EPW.Bytes()); err != nil {
			return err
		}
	}

	dbRaw, err := os.ReadFile(p.db.path)
	if err != nil {
		return fmt.Errorf("reading settings store: %w", err)
	}
	if err := writeMember(archiveSettingsDB, dbRaw); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}
	p.log.Info("project saved", zap.String("path", dest),
		zap.Int("objects", len(p.Objects)))
	return nil
}

// footprintCollection renders the building records as a GeoJSON feature
// collection in local coordinates, each feature tagged with its object id.
func (p *Project) footprintCollection() ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for i, rec := range p.Records {
		f := geojson.NewFeature(rec.Footprint)
		for k, v := range rec.Attrs {
			f.Properties[k] = v
		}
		f.Properties["TemplateName"] = rec.Template
		if i < len(p.Objects) {
			f.Properties["guid"] = p.Objects[i].ID.String()
		}
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

// Open reads a project archive written by Save.
func Open(src string, log *zap.Logger) (*Project, error) {
	if log == nil {
		log = zap.NewNop()
	}
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	members := make(map[string]*zip.File, len(zr.File))
	var epwName string
	for _, f := range zr.File {
		members[f.Name] = f
		if strings.HasSuffix(f.Name, archiveEPWSuffix) && path.Dir(f.Name) == "." {
			epwName = f.Name
		}
	}
	readMember := func(name string) ([]byte, error) {
		f, ok := members[name]
		if !ok {
			return nil, fmt.Errorf("archive member %s missing", name)
		}
		r, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}

	raw, err := readMember(archiveModel)
	if err != nil {
		return nil, err
	}
	var model modelDocument
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("parsing model document: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "gis2umi-")
	if err != nil {
		return nil, err
	}
	p := &Project{
		Name:     model.Name,
		Layers:   restoreLayers(model.Layers),
		Objects:  model.Objects,
		Settings: make(map[string]interface{}),
		POIs:     make(map[string][]Feature),
		tmpDir:   tmpDir,
		log:      log,
	}
	fail := func(err error) (*Project, error) {
		p.Close()
		return nil, err
	}

	raw, err = readMember(archiveSettings)
	if err != nil {
		return fail(err)
	}
	var settings projectSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return fail(fmt.Errorf("parsing project settings: %w", err))
	}
	p.Projection = Projection{
		Origin:     orb.Point(settings.OriginalProjectedOrigin),
		Geographic: settings.Geographic,
	}
	p.Settings["project-settings"] = map[string]interface{}{
		"OriginalProjectedOrigin": []float64{settings.OriginalProjectedOrigin[0], settings.OriginalProjectedOrigin[1]},
		"Geographic":              settings.Geographic,
	}

	raw, err = readMember(archiveGeoJSON)
	if err != nil {
		return fail(err)
	}
	if err := p.restoreRecords(raw); err != nil {
		return fail(err)
	}
	p.restoreBoundary()

	if raw, err := readMember(archiveTemplates); err == nil {
		p.TemplateLib = raw
	}
	if epwName != "" {
		if raw, err := readMember(epwName); err == nil {
			if epw, err := ParseEPW(raw); err == nil {
				epw.Name = epwName
				p.EPW = epw
			} else {
				log.Warn("weather file in archive is unreadable", zap.Error(err))
			}
		}
	}

	raw, err = readMember(archiveSettingsDB)
	if err != nil {
		return fail(err)
	}
	dbPath := filepath.Join(tmpDir, archiveSettingsDB)
	if err := os.WriteFile(dbPath, raw, 0644); err != nil {
		return fail(err)
	}
	db, err := openSettingsDB(dbPath)
	if err != nil {
		return fail(fmt.Errorf("opening settings store: %w", err))
	}
	p.db = db

	log.Info("project opened", zap.String("path", src),
		zap.Int("objects", len(p.Objects)), zap.Int("records", len(p.Records)))
	return p, nil
}

// restoreRecords rebuilds the building records from the footprint
// collection, reattaching solids through the stored object ids.
func (p *Project) restoreRecords(raw []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return fmt.Errorf("parsing footprint collection: %w", err)
	}
	byID := make(map[string]*Object, len(p.Objects))
	for _, obj := range p.Objects {
		byID[obj.ID.String()] = obj
	}
	for _, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			continue
		}
		attrs := map[string]interface{}(f.Properties)
		template, _ := attrs["TemplateName"].(string)
		guid, _ := attrs["guid"].(string)
		delete(attrs, "TemplateName")
		delete(attrs, "guid")
		rec := BuildingRecord{
			Attrs:     attrs,
			Footprint: poly,
			Template:  template,
		}
		if fid, ok := attrs[fidAttr]; ok {
			rec.FID = attributeKey(fid)
		}
		if obj, ok := byID[guid]; ok {
			rec.Solid = obj.Solid
		}
		p.Records = append(p.Records, rec)
	}
	return nil
}

// restoreBoundary recovers the site boundary from its document object.
func (p *Project) restoreBoundary() {
	layer := p.Layers.FindFullPath(LayerSiteBoundary)
	if layer == nil {
		return
	}
	for _, obj := range p.Objects {
		if obj.LayerIndex == layer.Index && len(obj.Polyline) > 0 {
			p.Boundary = orb.Ring(obj.Polyline)
			if p.Projection.Geographic {
				p.WorldBoundary = ProjectGeometry(p.Boundary, p.Projection.ToWorld).(orb.Ring)
			}
			return
		}
	}
}
