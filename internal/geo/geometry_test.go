package geo

import (
	"testing"

	"github.com/minesight/tilecore/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAt(kind core.MeasurementKind, positions ...core.Geodetic) core.MeasurementRecord {
	rec := core.MeasurementRecord{ID: "m-1", Kind: kind}
	for _, g := range positions {
		rec.Points = append(rec.Points, core.PointFromVector(CartesianFromGeodetic(g)))
	}
	return rec
}

func TestRecordGeometry_Point(t *testing.T) {
	rec := recordAt(core.KindPoint, core.Geodetic{Longitude: 113.3, Latitude: 23.1, Height: 50})

	g, err := RecordGeometry(rec)
	require.NoError(t, err)
	require.Equal(t, geom.TypePoint, g.Type())

	c, ok := g.MustAsPoint().Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 113.3, c.X, 1e-6)
	assert.InDelta(t, 23.1, c.Y, 1e-6)
	assert.InDelta(t, 50, c.Z, 1e-2)
}

func TestRecordGeometry_Polyline(t *testing.T) {
	rec := recordAt(core.KindPolyline,
		core.Geodetic{Longitude: 113.3, Latitude: 23.1},
		core.Geodetic{Longitude: 113.4, Latitude: 23.1},
		core.Geodetic{Longitude: 113.4, Latitude: 23.2},
	)

	g, err := RecordGeometry(rec)
	require.NoError(t, err)
	require.Equal(t, geom.TypeLineString, g.Type())
	assert.Equal(t, 3, g.MustAsLineString().Coordinates().Length())
}

func TestRecordGeometry_PolygonIsClosed(t *testing.T) {
	rec := recordAt(core.KindPolygon,
		core.Geodetic{Longitude: 113.3, Latitude: 23.1},
		core.Geodetic{Longitude: 113.4, Latitude: 23.1},
		core.Geodetic{Longitude: 113.4, Latitude: 23.2},
	)

	g, err := RecordGeometry(rec)
	require.NoError(t, err)
	require.Equal(t, geom.TypePolygon, g.Type())

	ring := g.MustAsPolygon().ExteriorRing().Coordinates()
	require.Equal(t, 4, ring.Length())
	assert.Equal(t, ring.GetXY(0), ring.GetXY(3))
}

func TestRecordGeometry_TooFewPoints(t *testing.T) {
	rec := recordAt(core.KindPolygon,
		core.Geodetic{Longitude: 113.3, Latitude: 23.1},
		core.Geodetic{Longitude: 113.4, Latitude: 23.1},
	)

	_, err := RecordGeometry(rec)
	require.Error(t, err)
}

func TestParsePoints_Valid(t *testing.T) {
	points, err := ParsePoints("[[0,0,0],[10,0,0],[10,10,0]]")

	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 10.0, points[2].X)
	assert.Equal(t, 10.0, points[2].Y)
}

func TestParsePoints_InvalidJSON(t *testing.T) {
	_, err := ParsePoints("not valid json")
	require.Error(t, err)
}

func TestParsePoints_Empty(t *testing.T) {
	_, err := ParsePoints("[]")
	require.Error(t, err)
}

func TestParsePoints_InsufficientCoordinates(t *testing.T) {
	_, err := ParsePoints("[[100,200],[1,2,3]]")
	require.Error(t, err)
}

func TestRecordGeometry_RepeatedPolylinePoint(t *testing.T) {
	at := core.Geodetic{Longitude: 113.3, Latitude: 23.1}
	rec := recordAt(core.KindPolyline, at, at)

	_, err := RecordGeometry(rec)
	assert.ErrorContains(t, err, "invalid polyline")
}

func TestRecordGeometry_SelfIntersectingPolygon(t *testing.T) {
	rec := recordAt(core.KindPolygon,
		core.Geodetic{Longitude: 113.3, Latitude: 23.1},
		core.Geodetic{Longitude: 113.4, Latitude: 23.2},
		core.Geodetic{Longitude: 113.4, Latitude: 23.1},
		core.Geodetic{Longitude: 113.3, Latitude: 23.2},
	)

	_, err := RecordGeometry(rec)
	assert.ErrorContains(t, err, "invalid polygon")
}
