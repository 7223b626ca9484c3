package umi

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtrudeFootprint(t *testing.T) {
	s, err := ExtrudeFootprint(orb.Polygon{unitSquare()}, 12)
	require.NoError(t, err)

	assert.Len(t, s.Vertices, 8)
	assert.Len(t, s.Faces, 6) // two caps plus one quad per edge
	assert.Equal(t, 12.0, s.Height())
	assert.True(t, s.IsClosed())
}

func TestExtrudeFootprintClockwiseRing(t *testing.T) {
	cw := orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	s, err := ExtrudeFootprint(orb.Polygon{cw}, 3)
	require.NoError(t, err)
	assert.True(t, s.IsClosed())
	assert.Equal(t, 3.0, s.Height())
}

func TestExtrudeFootprintIgnoresHoles(t *testing.T) {
	hole := orb.Ring{{0.25, 0.25}, {0.25, 0.75}, {0.75, 0.75}, {0.75, 0.25}, {0.25, 0.25}}
	withHole := orb.Polygon{unitSquare(), hole}
	plain := orb.Polygon{unitSquare()}

	a, err := ExtrudeFootprint(withHole, 5)
	require.NoError(t, err)
	b, err := ExtrudeFootprint(plain, 5)
	require.NoError(t, err)

	assert.Equal(t, b.Vertices, a.Vertices)
	assert.Equal(t, b.Faces, a.Faces)
}

func TestExtrudeFootprintErrors(t *testing.T) {
	_, err := ExtrudeFootprint(orb.Polygon{}, 5)
	assert.Error(t, err)

	_, err = ExtrudeFootprint(orb.Polygon{unitSquare()}, 0)
	assert.Error(t, err)
	_, err = ExtrudeFootprint(orb.Polygon{unitSquare()}, -2)
	assert.Error(t, err)

	tiny := orb.Ring{{0, 0}, {1, 0}, {0, 0}}
	_, err = ExtrudeFootprint(orb.Polygon{tiny}, 5)
	assert.Error(t, err)
}

func TestSolidFootprintRoundTrip(t *testing.T) {
	s, err := ExtrudeFootprint(orb.Polygon{unitSquare()}, 7)
	require.NoError(t, err)

	base := s.Footprint()
	assert.True(t, base.Closed())
	assert.Len(t, base, 5)
	assert.True(t, ValidRing(base))
}

func TestSolidTranslate(t *testing.T) {
	s, err := ExtrudeFootprint(orb.Polygon{unitSquare()}, 2)
	require.NoError(t, err)

	s.Translate(10, -5, 1)
	assert.Equal(t, Vertex{X: 10, Y: -5, Z: 1}, s.Vertices[0])
	assert.Equal(t, 2.0, s.Height())
}

func TestSolidFromFace(t *testing.T) {
	s := solidFromFace(unitSquare())
	require.NotNil(t, s)
	assert.Len(t, s.Vertices, 4)
	assert.Len(t, s.Faces, 1)
	assert.Equal(t, 0.0, s.Height())
	assert.False(t, s.IsClosed())

	assert.Nil(t, solidFromFace(orb.Ring{{0, 0}, {1, 1}}))
}
