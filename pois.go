package umi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// poiQuery builds a union query over the requested tags. A true value
// matches any tagged element, a string matches one value and a string
// slice matches any of its values.
func poiQuery(ring orb.Ring, tags map[string]interface{}) (string, error) {
	poly := polyFilter(ring)
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	add := func(filter string) {
		for _, kind := range []string{"node", "way"} {
			clauses = append(clauses, fmt.Sprintf(`%s%s(poly:%q);`, kind, filter, poly))
		}
	}
	for _, k := range keys {
		switch v := tags[k].(type) {
		case bool:
			if v {
				add(fmt.Sprintf(`[%q]`, k))
			}
		case string:
			add(fmt.Sprintf(`[%q=%q]`, k, v))
		case []string:
			if len(v) > 0 {
				add(fmt.Sprintf(`[%q~%q]`, k, "^("+strings.Join(v, "|")+")$"))
			}
		default:
			return "", fmt.Errorf("tag %q: value must be true, a string or a string list", k)
		}
	}
	if len(clauses) == 0 {
		return "", fmt.Errorf("at least one tag is required")
	}
	return fmt.Sprintf(`[out:json][timeout:180];(%s>;);out;`, strings.Join(clauses, "")), nil
}

// AddPOIs downloads points of interest matching the tags inside a lon/lat
// polygon and adds them to a layer: tagged nodes become point objects and
// closed tagged ways become flat surfaces. A nil polygon falls back to the
// project's site boundary. The default layer holds points of interest
// under the context tree.
func (p *Project) AddPOIs(ctx context.Context, polygon orb.Ring, tags map[string]interface{}, layer string) error {
	if polygon == nil {
		polygon = p.WorldBoundary
	}
	if polygon == nil {
		return fmt.Errorf("POI download needs a lon/lat polygon: the source dataset location is unknown")
	}
	if layer == "" {
		layer = LayerPOIs
	}
	query, err := poiQuery(polygon, tags)
	if err != nil {
		return err
	}
	client := NewOverpassClient(p.log)
	resp, err := client.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("downloading points of interest: %w", err)
	}

	nodes := make(map[int64]orb.Point, len(resp.Elements))
	for _, el := range resp.Elements {
		if el.Type == "node" {
			nodes[el.ID] = orb.Point{el.Lon, el.Lat}
		}
	}

	added := 0
	for _, el := range resp.Elements {
		switch el.Type {
		case "node":
			if len(el.Tags) == 0 {
				continue
			}
			f := Feature{Geometry: nodes[el.ID], Attrs: tagAttrs(el.Tags)}
			p.POIs[layer] = append(p.POIs[layer], f)
			p.addPoint(poiName(el.Tags, el.ID), layer, p.Projection.ToLocal(nodes[el.ID]))
			added++
		case "way":
			if len(el.Nodes) < 4 || el.Nodes[0] != el.Nodes[len(el.Nodes)-1] {
				continue
			}
			ring := make(orb.Ring, 0, len(el.Nodes))
			complete := true
			for _, id := range el.Nodes {
				pt, ok := nodes[id]
				if !ok {
					complete = false
					break
				}
				ring = append(ring, pt)
			}
			if !complete {
				continue
			}
			f := Feature{Geometry: orb.Polygon{ring}, Attrs: tagAttrs(el.Tags)}
			p.POIs[layer] = append(p.POIs[layer], f)
			local := make(orb.Ring, len(ring))
			for i, pt := range ring {
				local[i] = p.Projection.ToLocal(pt)
			}
			p.addSurface(poiName(el.Tags, el.ID), layer, local)
			added++
		}
	}
	p.log.Info("points of interest added", zap.String("layer", layer), zap.Int("count", added))
	return nil
}

func tagAttrs(tags map[string]string) map[string]interface{} {
	attrs := make(map[string]interface{}, len(tags))
	for k, v := range tags {
		attrs[k] = v
	}
	return attrs
}

func poiName(tags map[string]string, id int64) string {
	if name := tags["name"]; name != "" {
		return name
	}
	return fmt.Sprintf("osm-%d", id)
}
