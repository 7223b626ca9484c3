package umi

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Vertex is a 3D model coordinate.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Solid is a closed mesh: a list of vertices and faces indexing into it.
// Faces are stored as closed loops with counter-clockwise winding seen
// from outside the solid.
type Solid struct {
	Vertices []Vertex `json:"vertices"`
	Faces    [][]int  `json:"faces"`
}

// ExtrudeFootprint turns a 2D footprint polygon and a height into a prism
// solid: bottom cap at z=0, top cap at z=height and one quad per footprint
// edge.
//
// Interior rings (courtyards) are ignored; the extrusion covers the full
// exterior footprint. This is a known limitation of the format, not a
// silent repair candidate.
func ExtrudeFootprint(footprint orb.Polygon, height float64) (*Solid, error) {
	if len(footprint) == 0 {
		return nil, fmt.Errorf("empty footprint")
	}
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %g", height)
	}

	outer := closeRing(footprint[0])
	if len(outer) < 4 {
		return nil, fmt.Errorf("footprint ring has %d points, need at least 3 distinct", len(outer))
	}
	// normalize winding so the top cap faces up
	if ringArea(outer) < 0 {
		outer = reversedRing(outer)
	}
	ring := outer[:len(outer)-1] // drop the closing point
	n := len(ring)

	s := &Solid{Vertices: make([]Vertex, 0, 2*n), Faces: make([][]int, 0, n+2)}
	for _, p := range ring {
		s.Vertices = append(s.Vertices, Vertex{X: p[0], Y: p[1], Z: 0})
	}
	for _, p := range ring {
		s.Vertices = append(s.Vertices, Vertex{X: p[0], Y: p[1], Z: height})
	}

	// bottom cap, wound to face downward
	bottom := make([]int, n)
	for i := 0; i < n; i++ {
		bottom[i] = n - 1 - i
	}
	s.Faces = append(s.Faces, bottom)

	// top cap faces upward
	top := make([]int, n)
	for i := 0; i < n; i++ {
		top[i] = n + i
	}
	s.Faces = append(s.Faces, top)

	// side quads
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		s.Faces = append(s.Faces, []int{i, j, j + n, i + n})
	}
	return s, nil
}

// solidFromFace builds a zero-height planar surface from a ring, used for
// POI and park outlines that carry no height.
func solidFromFace(ring orb.Ring) *Solid {
	ring = closeRing(ring)
	if len(ring) < 4 {
		return nil
	}
	if ringArea(ring) < 0 {
		ring = reversedRing(ring)
	}
	open := ring[:len(ring)-1]
	s := &Solid{Vertices: make([]Vertex, len(open)), Faces: [][]int{make([]int, len(open))}}
	for i, p := range open {
		s.Vertices[i] = Vertex{X: p[0], Y: p[1]}
		s.Faces[0][i] = i
	}
	return s
}

func reversedRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

// Height reports the vertical extent of the solid.
func (s *Solid) Height() float64 {
	if len(s.Vertices) == 0 {
		return 0
	}
	min, max := s.Vertices[0].Z, s.Vertices[0].Z
	for _, v := range s.Vertices[1:] {
		if v.Z < min {
			min = v.Z
		}
		if v.Z > max {
			max = v.Z
		}
	}
	return max - min
}

// IsClosed reports whether every edge of the mesh is shared by exactly two
// faces, i.e. the mesh bounds a solid volume.
func (s *Solid) IsClosed() bool {
	if len(s.Faces) == 0 {
		return false
	}
	type edge struct{ a, b int }
	uses := make(map[edge]int)
	for _, face := range s.Faces {
		for i := range face {
			a, b := face[i], face[(i+1)%len(face)]
			if a > b {
				a, b = b, a
			}
			uses[edge{a, b}]++
		}
	}
	for _, count := range uses {
		if count != 2 {
			return false
		}
	}
	return true
}

// Footprint reconstructs the base ring of the solid (vertices at the
// lowest elevation, in stored order).
func (s *Solid) Footprint() orb.Ring {
	if len(s.Vertices) == 0 {
		return nil
	}
	min := s.Vertices[0].Z
	for _, v := range s.Vertices[1:] {
		if v.Z < min {
			min = v.Z
		}
	}
	var ring orb.Ring
	for _, v := range s.Vertices {
		if v.Z == min {
			ring = append(ring, orb.Point{v.X, v.Y})
		}
	}
	return closeRing(ring)
}

// Translate shifts the solid in place.
func (s *Solid) Translate(dx, dy, dz float64) {
	for i := range s.Vertices {
		s.Vertices[i].X += dx
		s.Vertices[i].Y += dy
		s.Vertices[i].Z += dz
	}
}
