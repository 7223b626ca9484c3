package umi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	geo "github.com/kellydunn/golang-geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NetworkType selects a preset of way filters for street queries.
type NetworkType string

const (
	NetworkWalk         NetworkType = "walk"
	NetworkBike         NetworkType = "bike"
	NetworkDrive        NetworkType = "drive"
	NetworkDriveService NetworkType = "drive_service"
	NetworkAll          NetworkType = "all"
	NetworkAllPrivate   NetworkType = "all_private"
)

// networkFilters are Overpass way filters per network type. They follow
// the conventional OpenStreetMap routing presets: the drive presets drop
// non-motorized ways and private access, the walk and bike presets drop
// motorways and ways tagged against that mode.
var networkFilters = map[NetworkType]string{
	NetworkDrive: `["highway"]["area"!~"yes"]` +
		`["highway"!~"abandoned|bridleway|bus_guideway|construction|corridor|cycleway|elevator|escalator|footway|path|pedestrian|planned|platform|proposed|raceway|service|steps|track"]` +
		`["motor_vehicle"!~"no"]["motorcar"!~"no"]` +
		`["service"!~"alley|driveway|emergency_access|parking|parking_aisle|private"]["access"!~"private"]`,
	NetworkDriveService: `["highway"]["area"!~"yes"]` +
		`["highway"!~"abandoned|bridleway|bus_guideway|construction|corridor|cycleway|elevator|escalator|footway|path|pedestrian|planned|platform|proposed|raceway|steps|track"]` +
		`["motor_vehicle"!~"no"]["motorcar"!~"no"]` +
		`["service"!~"emergency_access|parking|parking_aisle|private"]["access"!~"private"]`,
	NetworkWalk: `["highway"]["area"!~"yes"]` +
		`["highway"!~"abandoned|bus_guideway|construction|cycleway|motor|planned|platform|proposed|raceway"]` +
		`["foot"!~"no"]["service"!~"private"]["access"!~"private"]`,
	NetworkBike: `["highway"]["area"!~"yes"]` +
		`["highway"!~"abandoned|bus_guideway|construction|corridor|elevator|escalator|footway|motor|planned|platform|proposed|raceway|steps"]` +
		`["bicycle"!~"no"]["service"!~"private"]["access"!~"private"]`,
	NetworkAll: `["highway"]["area"!~"yes"]` +
		`["highway"!~"abandoned|construction|planned|platform|proposed|raceway"]["access"!~"private"]`,
	NetworkAllPrivate: `["highway"]["area"!~"yes"]` +
		`["highway"!~"abandoned|construction|planned|platform|proposed|raceway"]`,
}

// StreetOptions configures AddStreetGraph.
type StreetOptions struct {
	// NetworkType selects the way filter preset; defaults to drive.
	NetworkType NetworkType
	// CustomFilter replaces the preset with a raw Overpass way filter.
	CustomFilter string
	// Simplify merges interstitial degree-2 nodes so edges run between
	// intersections and dead ends only.
	Simplify bool
	// RetainAll keeps disconnected components instead of only the largest.
	RetainAll bool
	// TruncateByEdge keeps edges that cross the boundary, retaining their
	// outside endpoint.
	TruncateByEdge bool
	// CleanPeriphery queries a buffered region around the boundary before
	// truncating, so edge geometry near the boundary is complete.
	CleanPeriphery bool
	// Layer is the destination layer path; defaults to the streets layer.
	Layer string
}

// StreetNode is a graph node at a lon/lat position.
type StreetNode struct {
	ID    int64
	Point orb.Point
	Tags  map[string]string
}

// StreetEdge connects two nodes and carries the full way geometry between
// them in lon/lat.
type StreetEdge struct {
	From, To int64
	Name     string
	Tags     map[string]string
	Geometry orb.LineString
}

// StreetGraph is an undirected street network.
type StreetGraph struct {
	Nodes map[int64]*StreetNode
	Edges []*StreetEdge
}

// OverpassClient talks to an Overpass API endpoint. Requests are rate
// limited to stay within the public servers' usage policy.
type OverpassClient struct {
	Endpoint string
	HTTP     *http.Client
	limiter  *rate.Limiter
	log      *zap.Logger
}

const defaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// NewOverpassClient returns a client against the public endpoint, limited
// to one request per second.
func NewOverpassClient(log *zap.Logger) *OverpassClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &OverpassClient{
		Endpoint: defaultOverpassEndpoint,
		HTTP:     &http.Client{Timeout: 300 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(1), 1),
		log:      log,
	}
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// Query posts an Overpass QL query and decodes the JSON response.
func (c *OverpassClient) Query(ctx context.Context, query string) (*overpassResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.log.Debug("overpass query", zap.String("endpoint", c.Endpoint), zap.Int("bytes", len(query)))
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("overpass: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding overpass response: %w", err)
	}
	return &out, nil
}

// polyFilter renders a lon/lat ring as an Overpass poly filter value,
// which wants "lat lon lat lon ...".
func polyFilter(ring orb.Ring) string {
	var b strings.Builder
	for i, pt := range ring {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.7f %.7f", pt.Lat(), pt.Lon())
	}
	return b.String()
}

func streetQuery(ring orb.Ring, filter string) string {
	return fmt.Sprintf(`[out:json][timeout:180];(way%s(poly:%q);>;);out;`, filter, polyFilter(ring))
}

// buildStreetGraph assembles a graph from raw elements: nodes first, then
// one edge per consecutive node pair of each way.
func buildStreetGraph(resp *overpassResponse) *StreetGraph {
	g := &StreetGraph{Nodes: make(map[int64]*StreetNode)}
	for _, el := range resp.Elements {
		if el.Type != "node" {
			continue
		}
		g.Nodes[el.ID] = &StreetNode{
			ID:    el.ID,
			Point: orb.Point{el.Lon, el.Lat},
			Tags:  el.Tags,
		}
	}
	for _, el := range resp.Elements {
		if el.Type != "way" || len(el.Nodes) < 2 {
			continue
		}
		name := el.Tags["name"]
		for i := 0; i+1 < len(el.Nodes); i++ {
			from, to := el.Nodes[i], el.Nodes[i+1]
			a, okA := g.Nodes[from]
			b, okB := g.Nodes[to]
			if !okA || !okB {
				continue
			}
			g.Edges = append(g.Edges, &StreetEdge{
				From:     from,
				To:       to,
				Name:     name,
				Tags:     el.Tags,
				Geometry: orb.LineString{a.Point, b.Point},
			})
		}
	}
	return g
}

// truncateToPolygon drops nodes outside the lon/lat ring. With byEdge,
// outside nodes with at least one inside neighbor stay, so boundary-crossing
// edges keep both endpoints.
func truncateToPolygon(g *StreetGraph, ring orb.Ring, byEdge bool) *StreetGraph {
	inside := make(map[int64]bool, len(g.Nodes))
	for id, node := range g.Nodes {
		inside[id] = planar.RingContains(ring, node.Point)
	}
	keep := make(map[int64]bool, len(g.Nodes))
	for id, in := range inside {
		if in {
			keep[id] = true
		}
	}
	if byEdge {
		for _, e := range g.Edges {
			if inside[e.From] || inside[e.To] {
				keep[e.From] = true
				keep[e.To] = true
			}
		}
	}
	out := &StreetGraph{Nodes: make(map[int64]*StreetNode, len(keep))}
	for id := range keep {
		out.Nodes[id] = g.Nodes[id]
	}
	for _, e := range g.Edges {
		if keep[e.From] && keep[e.To] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// simplifyGraph merges chains of degree-2 nodes into single edges, keeping
// intersections, dead ends and the full chain geometry.
func simplifyGraph(g *StreetGraph) *StreetGraph {
	adj := make(map[int64][]*StreetEdge, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e)
		adj[e.To] = append(adj[e.To], e)
	}
	endpoint := func(id int64) bool {
		return len(adj[id]) != 2
	}

	out := &StreetGraph{Nodes: make(map[int64]*StreetNode)}
	visited := make(map[*StreetEdge]bool, len(g.Edges))
	addNode := func(id int64) {
		if _, ok := out.Nodes[id]; !ok {
			out.Nodes[id] = g.Nodes[id]
		}
	}

	// Sorted start order keeps the output deterministic.
	starts := make([]int64, 0, len(g.Nodes))
	for id := range g.Nodes {
		if endpoint(id) {
			starts = append(starts, id)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	for _, start := range starts {
		for _, first := range adj[start] {
			if visited[first] {
				continue
			}
			edge := first
			node := start
			geom := orb.LineString{g.Nodes[start].Point}
			names := []string{}
			var tags map[string]string
			for {
				visited[edge] = true
				if edge.Name != "" && (len(names) == 0 || names[len(names)-1] != edge.Name) {
					names = append(names, edge.Name)
				}
				tags = edge.Tags
				next := edge.From
				if next == node {
					next = edge.To
				}
				geom = append(geom, g.Nodes[next].Point)
				node = next
				if endpoint(node) {
					break
				}
				var cont *StreetEdge
				for _, cand := range adj[node] {
					if !visited[cand] {
						cont = cand
						break
					}
				}
				if cont == nil {
					break
				}
				edge = cont
			}
			addNode(start)
			addNode(node)
			out.Edges = append(out.Edges, &StreetEdge{
				From:     start,
				To:       node,
				Name:     strings.Join(dedupeNames(names), " + "),
				Tags:     tags,
				Geometry: geom,
			})
		}
	}

	// Pure cycles have no endpoint node; keep their edges untouched.
	for _, e := range g.Edges {
		if !visited[e] {
			addNode(e.From)
			addNode(e.To)
			out.Edges = append(out.Edges, e)
			visited[e] = true
		}
	}
	return out
}

func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// retainLargestComponent keeps only the connected component with the most
// nodes.
func retainLargestComponent(g *StreetGraph) *StreetGraph {
	adj := make(map[int64][]int64, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	seen := make(map[int64]int, len(g.Nodes))
	comp := 0
	var best, bestSize int
	ids := make([]int64, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		comp++
		size := 0
		stack := []int64{id}
		seen[id] = comp
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			for _, m := range adj[n] {
				if _, ok := seen[m]; !ok {
					seen[m] = comp
					stack = append(stack, m)
				}
			}
		}
		if size > bestSize {
			best, bestSize = comp, size
		}
	}
	out := &StreetGraph{Nodes: make(map[int64]*StreetNode, bestSize)}
	for id, c := range seen {
		if c == best {
			out.Nodes[id] = g.Nodes[id]
		}
	}
	for _, e := range g.Edges {
		if seen[e.From] == best && seen[e.To] == best {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// bufferRing pushes each vertex of a lon/lat ring outward from the ring's
// centroid by the given distance in meters.
func bufferRing(ring orb.Ring, meters float64) orb.Ring {
	c := RingCentroid(ring)
	center := geo.NewPoint(c.Lat(), c.Lon())
	out := make(orb.Ring, len(ring))
	for i, pt := range ring {
		v := geo.NewPoint(pt.Lat(), pt.Lon())
		bearing := center.BearingTo(v)
		moved := v.PointAtDistanceAndBearing(meters/1000.0, bearing)
		out[i] = orb.Point{moved.Lng(), moved.Lat()}
	}
	return out
}

const peripheryBufferMeters = 500.0

// AddStreetGraph downloads the street network inside a lon/lat polygon and
// adds one polyline per edge to the streets layer. A nil polygon falls back
// to the project's site boundary, which requires a geographic source
// dataset.
func (p *Project) AddStreetGraph(ctx context.Context, polygon orb.Ring, opts StreetOptions) error {
	if polygon == nil {
		polygon = p.WorldBoundary
	}
	if polygon == nil {
		return fmt.Errorf("street download needs a lon/lat polygon: the source dataset location is unknown")
	}
	filter := opts.CustomFilter
	if filter == "" {
		nt := opts.NetworkType
		if nt == "" {
			nt = NetworkDrive
		}
		var ok bool
		filter, ok = networkFilters[nt]
		if !ok {
			return fmt.Errorf("unknown network type %q", nt)
		}
	}

	queryRing := polygon
	if opts.CleanPeriphery {
		queryRing = bufferRing(polygon, peripheryBufferMeters)
	}
	client := NewOverpassClient(p.log)
	resp, err := client.Query(ctx, streetQuery(queryRing, filter))
	if err != nil {
		return fmt.Errorf("downloading street network: %w", err)
	}

	g := buildStreetGraph(resp)
	g = truncateToPolygon(g, polygon, opts.TruncateByEdge)
	if opts.Simplify {
		g = simplifyGraph(g)
	}
	if !opts.RetainAll {
		g = retainLargestComponent(g)
	}
	p.StreetGraph = g
	p.log.Info("street network added",
		zap.Int("nodes", len(g.Nodes)), zap.Int("edges", len(g.Edges)))

	layer := opts.Layer
	if layer == "" {
		layer = LayerStreets
	}
	for _, e := range g.Edges {
		name := e.Name
		if name == "" {
			name = "unnamed"
		}
		local := make(orb.LineString, len(e.Geometry))
		for i, pt := range e.Geometry {
			local[i] = p.Projection.ToLocal(pt)
		}
		p.addCurve(name, layer, local)
	}
	return nil
}
