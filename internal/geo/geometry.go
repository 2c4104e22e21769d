package geo

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// RecordGeometry builds a geodetic (lon, lat, height) geometry for a finalized
// measurement: a Point, a LineString, or a Polygon with a closed shell.
func RecordGeometry(rec core.MeasurementRecord) (geom.Geometry, error) {
	if len(rec.Points) < rec.Kind.MinPoints() {
		return geom.Geometry{}, fmt.Errorf("%s needs at least %d points, got %d", rec.Kind, rec.Kind.MinPoints(), len(rec.Points))
	}

	flat := make([]float64, 0, (len(rec.Points)+1)*3)
	for i, p := range rec.Points {
		g, err := GeodeticFromCartesian(p.Vector())
		if err != nil {
			return geom.Geometry{}, fmt.Errorf("point %d: %w", i, err)
		}
		flat = append(flat, g.Longitude, g.Latitude, g.Height)
	}

	switch rec.Kind {
	case core.KindPoint:
		n := len(flat)
		pt, err := geom.NewPoint(geom.Coordinates{
			XY:   geom.XY{X: flat[n-3], Y: flat[n-2]},
			Z:    flat[n-1],
			Type: geom.DimXYZ,
		})
		if err != nil {
			return geom.Geometry{}, fmt.Errorf("invalid point: %w", err)
		}
		return pt.AsGeometry(), nil
	case core.KindPolyline:
		ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ))
		if err != nil {
			return geom.Geometry{}, fmt.Errorf("invalid polyline: %w", err)
		}
		return ls.AsGeometry(), nil
	case core.KindPolygon:
		flat = append(flat, flat[0], flat[1], flat[2])
		shell, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ))
		if err != nil {
			return geom.Geometry{}, fmt.Errorf("invalid polygon shell: %w", err)
		}
		poly, err := geom.NewPolygon([]geom.LineString{shell})
		if err != nil {
			return geom.Geometry{}, fmt.Errorf("invalid polygon: %w", err)
		}
		return poly.AsGeometry(), nil
	default:
		return geom.Geometry{}, fmt.Errorf("unsupported measurement kind %q", rec.Kind)
	}
}

// ParsePoints parses a JSON array of cartesian coordinates.
// Input format: "[[x1,y1,z1],[x2,y2,z2],...]"
func ParsePoints(input string) ([]r3.Vector, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse points JSON: %w", err)
	}

	if len(coords) == 0 {
		return nil, fmt.Errorf("points must not be empty")
	}

	points := make([]r3.Vector, len(coords))
	for i, coord := range coords {
		if len(coord) < 3 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		points[i] = r3.Vector{X: coord[0], Y: coord[1], Z: coord[2]}
	}

	return points, nil
}
