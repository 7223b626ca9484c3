package umi

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadius = 6371000.0 // meters

// CollectPoints gathers every coordinate of a polygonal geometry.
func CollectPoints(g orb.Geometry) []orb.Point {
	var pts []orb.Point
	switch geom := g.(type) {
	case orb.Polygon:
		for _, ring := range geom {
			pts = append(pts, ring...)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			for _, ring := range poly {
				pts = append(pts, ring...)
			}
		}
	case orb.Ring:
		pts = append(pts, geom...)
	case orb.LineString:
		pts = append(pts, geom...)
	case orb.Point:
		pts = append(pts, geom)
	}
	return pts
}

// closeRing returns the ring with its first point appended if the ring is
// not already closed.
func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	out := make(orb.Ring, len(r)+1)
	copy(out, r)
	out[len(r)] = r[0]
	return out
}

// ValidRing reports whether a linear ring satisfies the usual OGC rules:
// at least four coordinates once closed, a nonzero area and no
// self-intersection.
func ValidRing(r orb.Ring) bool {
	r = closeRing(r)
	if len(r) < 4 {
		return false
	}
	if math.Abs(ringArea(r)) < 1e-9 {
		return false
	}
	return !ringSelfIntersects(r)
}

// ValidGeometry reports whether the geometry is a polygon or multi-polygon
// whose rings all pass ValidRing. Anything else is rejected: features in a
// footprint dataset are expected to be polygonal.
func ValidGeometry(g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 {
			return false
		}
		for _, ring := range geom {
			if !ValidRing(ring) {
				return false
			}
		}
		return true
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return false
		}
		for _, poly := range geom {
			if !ValidGeometry(poly) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func ringArea(r orb.Ring) float64 {
	var area float64
	for i := 0; i < len(r)-1; i++ {
		area += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return area / 2
}

// ringSelfIntersects runs a pairwise proper-intersection test over the
// ring's segments, skipping adjacent segments which legitimately share an
// endpoint. Quadratic, which is fine for footprint-sized rings.
func ringSelfIntersects(r orb.Ring) bool {
	n := len(r) - 1 // closed ring, last point repeats the first
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d orb.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// ConvexHull computes the convex hull of a point set with the monotone
// chain algorithm and returns it as a closed counter-clockwise ring. With
// fewer than three distinct points the result is an empty ring.
func ConvexHull(points []orb.Point) orb.Ring {
	if len(points) < 3 {
		return nil
	}
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sortPoints(pts)
	pts = dedupePoints(pts)
	if len(pts) < 3 {
		return nil
	}

	var lower, upper []orb.Point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		// collinear input has no 2D hull
		return nil
	}
	ring := make(orb.Ring, 0, len(hull)+1)
	ring = append(ring, hull...)
	ring = append(ring, hull[0])
	return ring
}

func sortPoints(pts []orb.Point) {
	// insertion sort by (x, y); hull inputs are small
	for i := 1; i < len(pts); i++ {
		for j := i; j > 0; j-- {
			if pts[j][0] < pts[j-1][0] ||
				(pts[j][0] == pts[j-1][0] && pts[j][1] < pts[j-1][1]) {
				pts[j], pts[j-1] = pts[j-1], pts[j]
			} else {
				break
			}
		}
	}
}

func dedupePoints(pts []orb.Point) []orb.Point {
	out := pts[:0]
	for i, p := range pts {
		if i == 0 || p != pts[i-1] {
			out = append(out, p)
		}
	}
	return out
}

// RingCentroid returns the area centroid of a closed ring.
func RingCentroid(r orb.Ring) orb.Point {
	r = closeRing(r)
	var cx, cy, area float64
	for i := 0; i < len(r)-1; i++ {
		f := r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
		cx += (r[i][0] + r[i+1][0]) * f
		cy += (r[i][1] + r[i+1][1]) * f
		area += f
	}
	if math.Abs(area) < 1e-12 {
		// degenerate ring, fall back to the vertex mean
		for _, p := range r[:len(r)-1] {
			cx += p[0]
			cy += p[1]
		}
		n := float64(len(r) - 1)
		return orb.Point{cx / n, cy / n}
	}
	area /= 2
	return orb.Point{cx / (6 * area), cy / (6 * area)}
}

// TranslateGeometry shifts every coordinate of g by (dx, dy) and returns a
// new geometry, leaving the input untouched.
func TranslateGeometry(g orb.Geometry, dx, dy float64) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return orb.Point{geom[0] + dx, geom[1] + dy}
	case orb.LineString:
		out := make(orb.LineString, len(geom))
		for i, p := range geom {
			out[i] = orb.Point{p[0] + dx, p[1] + dy}
		}
		return out
	case orb.Ring:
		out := make(orb.Ring, len(geom))
		for i, p := range geom {
			out[i] = orb.Point{p[0] + dx, p[1] + dy}
		}
		return out
	case orb.Polygon:
		out := make(orb.Polygon, len(geom))
		for i, ring := range geom {
			out[i] = TranslateGeometry(ring, dx, dy).(orb.Ring)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			out[i] = TranslateGeometry(poly, dx, dy).(orb.Polygon)
		}
		return out
	default:
		return g
	}
}

// looksGeographic guesses whether a bound holds latitude/longitude degrees
// rather than projected meters. Coordinates must sit in the degree range
// and the extent must span no more than a couple of degrees: a footprint
// dataset in degrees covers a city at most, while local meters that happen
// to sit in range span far wider.
func looksGeographic(b orb.Bound) bool {
	if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90 {
		return false
	}
	return b.Max[0]-b.Min[0] <= 2 && b.Max[1]-b.Min[1] <= 2
}

// Projection maps geographic coordinates onto a local plane in meters
// centered on the site origin. Geographic inputs use an azimuthal
// equirectangular projection around the origin; already-projected inputs
// are translated only.
type Projection struct {
	Origin     orb.Point // lon/lat when Geographic, meters otherwise
	Geographic bool
}

// ToLocal converts a world coordinate to site-local meters.
func (pr Projection) ToLocal(p orb.Point) orb.Point {
	if !pr.Geographic {
		return orb.Point{p[0] - pr.Origin[0], p[1] - pr.Origin[1]}
	}
	lat0 := pr.Origin[1] * math.Pi / 180
	x := (p[0] - pr.Origin[0]) * math.Pi / 180 * math.Cos(lat0) * earthRadius
	y := (p[1] - pr.Origin[1]) * math.Pi / 180 * earthRadius
	return orb.Point{x, y}
}

// ToWorld is the inverse of ToLocal.
func (pr Projection) ToWorld(p orb.Point) orb.Point {
	if !pr.Geographic {
		return orb.Point{p[0] + pr.Origin[0], p[1] + pr.Origin[1]}
	}
	lat0 := pr.Origin[1] * math.Pi / 180
	lon := pr.Origin[0] + p[0]/(earthRadius*math.Cos(lat0))*180/math.Pi
	lat := pr.Origin[1] + p[1]/earthRadius*180/math.Pi
	return orb.Point{lon, lat}
}

// ProjectGeometry applies fn to every coordinate of g.
func ProjectGeometry(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return fn(geom)
	case orb.LineString:
		out := make(orb.LineString, len(geom))
		for i, p := range geom {
			out[i] = fn(p)
		}
		return out
	case orb.Ring:
		out := make(orb.Ring, len(geom))
		for i, p := range geom {
			out[i] = fn(p)
		}
		return out
	case orb.Polygon:
		out := make(orb.Polygon, len(geom))
		for i, ring := range geom {
			out[i] = ProjectGeometry(ring, fn).(orb.Ring)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			out[i] = ProjectGeometry(poly, fn).(orb.Polygon)
		}
		return out
	default:
		return g
	}
}
