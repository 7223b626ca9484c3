package umi

import (
	"iter"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// BuildingRecord is one surviving, single-part feature with its extruded
// solid and resolved template name. Template is empty for unresolved
// records, which land on the shading layer instead of the building layer.
type BuildingRecord struct {
	FID       string
	Attrs     map[string]interface{}
	Footprint orb.Polygon
	Solid     *Solid
	Template  string
}

// FIDColumn is the attribute carrying the record id after assignFIDs.
const fidAttr = "fid"

// Sequence turns a feature slice into a restartable sequence.
func Sequence(feats []Feature) iter.Seq[Feature] {
	return func(yield func(Feature) bool) {
		for _, f := range feats {
			if !yield(f) {
				return
			}
		}
	}
}

// FilterValid drops features whose geometry fails validity rules and
// features missing the height attribute. Dropped features are logged, not
// errors: this is best-effort filtering.
func FilterValid(src iter.Seq[Feature], heightColumn string, log *zap.Logger) iter.Seq[Feature] {
	return func(yield func(Feature) bool) {
		invalid, missing := 0, 0
		for f := range src {
			if !ValidGeometry(f.Geometry) {
				invalid++
				continue
			}
			if _, ok := f.Float(heightColumn); !ok {
				missing++
				continue
			}
			if !yield(f) {
				return
			}
		}
		if invalid > 0 {
			log.Warn("invalid geometries ignored", zap.Int("count", invalid))
		}
		if missing > 0 {
			log.Warn("features without height attribute ignored",
				zap.String("column", heightColumn), zap.Int("count", missing))
		}
	}
}

// SplitParts explodes multi-part geometries into single-part features,
// each part carrying a copy of the parent's attributes.
func SplitParts(src iter.Seq[Feature]) iter.Seq[Feature] {
	return func(yield func(Feature) bool) {
		for f := range src {
			switch geom := f.Geometry.(type) {
			case orb.MultiPolygon:
				for _, poly := range geom {
					part := Feature{Geometry: poly, Attrs: f.CloneAttrs()}
					if !yield(part) {
						return
					}
				}
			default:
				if !yield(f) {
					return
				}
			}
		}
	}
}

// ExtrudeAll turns single-part features into building records by extruding
// each footprint to its height. Extrusion failures are dropped silently,
// mirroring the validity filter.
func ExtrudeAll(src iter.Seq[Feature], heightColumn string, log *zap.Logger) iter.Seq[BuildingRecord] {
	return func(yield func(BuildingRecord) bool) {
		errored := 0
		for f := range src {
			poly, ok := f.Geometry.(orb.Polygon)
			if !ok {
				errored++
				continue
			}
			height, _ := f.Float(heightColumn)
			solid, err := ExtrudeFootprint(poly, height)
			if err != nil {
				errored++
				continue
			}
			fid, _ := f.String(fidAttr)
			rec := BuildingRecord{
				FID:       fid,
				Attrs:     f.Attrs,
				Footprint: poly,
				Solid:     solid,
			}
			if !yield(rec) {
				return
			}
		}
		if errored > 0 {
			log.Warn("solid creation errors ignored", zap.Int("count", errored))
		}
	}
}

// ResolveTemplates assigns template names to records. Unresolved records
// keep an empty Template and are later routed to the shading layer.
func ResolveTemplates(src iter.Seq[BuildingRecord], resolver TemplateResolver) iter.Seq[BuildingRecord] {
	return func(yield func(BuildingRecord) bool) {
		for rec := range src {
			if resolver != nil {
				if name, ok := resolver.Resolve(rec.Attrs); ok {
					rec.Template = name
				}
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// assignFIDs stamps each feature with a record id: the value of idColumn
// when given, a serial index otherwise. Parts split from the same feature
// share the id, so a building made of several polygons keeps one name.
func assignFIDs(feats []Feature, idColumn string) {
	for i := range feats {
		if idColumn != "" {
			if v, ok := feats[i].String(idColumn); ok {
				feats[i].Attrs[fidAttr] = v
				continue
			}
		}
		if _, ok := feats[i].Attrs[fidAttr]; !ok {
			feats[i].Attrs[fidAttr] = attributeKey(i)
		}
	}
}
