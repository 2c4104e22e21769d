package measure

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/internal/geo"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolylineLength_SumsSegments(t *testing.T) {
	points := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 10, Y: 0, Z: 0},
		{X: 10, Y: 10, Z: 0},
	}
	assert.InDelta(t, 20, PolylineLength(points), 1e-6)
}

func TestPolygonArea3D_UnitSquareAnyStart(t *testing.T) {
	square := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 0},
		{X: 0, Y: 1, Z: 0},
	}
	for start := range square {
		rotated := append(append([]r3.Vector{}, square[start:]...), square[:start]...)
		assert.InDelta(t, 1.0, PolygonArea3D(rotated), 1e-6, "start %d", start)

		reversed := make([]r3.Vector, len(rotated))
		for i, p := range rotated {
			reversed[len(rotated)-1-i] = p
		}
		assert.InDelta(t, 1.0, PolygonArea3D(reversed), 1e-6, "reversed start %d", start)
	}
}

func TestPolygonArea3D_TiltedPlane(t *testing.T) {
	// a 2x3 rectangle in the plane x = z
	s := math.Sqrt2
	rect := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 2 / s, Y: 0, Z: 2 / s},
		{X: 2 / s, Y: 3, Z: 2 / s},
		{X: 0, Y: 3, Z: 0},
	}
	assert.InDelta(t, 6.0, PolygonArea3D(rect), 1e-9)
}

func TestPolygonArea3D_TooFewPoints(t *testing.T) {
	assert.Equal(t, 0.0, PolygonArea3D([]r3.Vector{{}, {X: 1}}))
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "Distance: 12.35 m", FormatDistance(12.346, UnitMeter))
	assert.Equal(t, "Distance: 0.012 km", FormatDistance(12.346, UnitKilometer))
	assert.Equal(t, "Distance: 1.000 km", FormatDistance(1000, UnitMeter))
	assert.Equal(t, "Distance: 999.99 m", FormatDistance(999.99, UnitMeter))
}

func TestFormatArea(t *testing.T) {
	assert.Equal(t, "Area: 1.00 m²", FormatArea(1))
	assert.Equal(t, "Area: 999999.00 m²", FormatArea(999999))
	assert.Equal(t, "Area: 2.500 km²", FormatArea(2500000))
}

func TestCompute_Polyline(t *testing.T) {
	res := Compute(core.KindPolyline, []r3.Vector{{}, {X: 3, Y: 4}}, UnitMeter)
	assert.Equal(t, core.KindPolyline, res.Kind)
	assert.InDelta(t, 5, res.Value.Scalar, 1e-12)
	assert.Equal(t, "Distance: 5.00 m", res.DisplayText)

	single := Compute(core.KindPolyline, []r3.Vector{{X: 1}}, UnitMeter)
	assert.Equal(t, "Distance: 0 m", single.DisplayText)
}

func TestCompute_PolygonNotEnoughPoints(t *testing.T) {
	res := Compute(core.KindPolygon, []r3.Vector{{}, {X: 1}}, UnitMeter)
	assert.Equal(t, core.KindPolygon, res.Kind)
	assert.Equal(t, 0.0, res.Value.Scalar)
	assert.Equal(t, "Polygon: not enough points", res.DisplayText)
}

func TestCompute_Point(t *testing.T) {
	p := geo.CartesianFromGeodetic(core.Geodetic{Longitude: 113.323, Latitude: 23.106, Height: 50})

	res := Compute(core.KindPoint, []r3.Vector{p}, UnitMeter)

	require.Equal(t, core.KindPoint, res.Kind)
	require.True(t, res.Value.IsCoord())
	assert.InDelta(t, 113.323, res.Value.Coords[0], 1e-6)
	assert.InDelta(t, 23.106, res.Value.Coords[1], 1e-6)
	assert.InDelta(t, 50, res.Value.Coords[2], 1e-2)
	assert.Regexp(t, `^\(113\.3\d{5}, 23\.1\d{5}, (49|50)\.\d{2}m\)$`, res.DisplayText)
	assert.Regexp(t, `^113\.3\d{5}, 23\.1\d{5}, (49|50)\.\d{2}$`, res.Coord)
}

func TestCompute_PointUsesLastPosition(t *testing.T) {
	a := geo.CartesianFromGeodetic(core.Geodetic{Longitude: 10, Latitude: 10})
	b := geo.CartesianFromGeodetic(core.Geodetic{Longitude: 20, Latitude: 20})

	res := Compute(core.KindPoint, []r3.Vector{a, b}, UnitMeter)
	assert.InDelta(t, 20, res.Value.Coords[0], 1e-6)
}

func TestCompute_FailuresYieldUnknown(t *testing.T) {
	assert.Equal(t, Result{Kind: core.KindUnknown}, Compute(core.KindPolyline, nil, UnitMeter))
	// the earth's center has no geodetic position
	assert.Equal(t, Result{Kind: core.KindUnknown}, Compute(core.KindPoint, []r3.Vector{{}}, UnitMeter))
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("kilometer")
	require.NoError(t, err)
	assert.Equal(t, UnitKilometer, u)

	_, err = ParseUnit("mile")
	assert.Error(t, err)
}
