package measure

import (
	"fmt"
	"math"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/internal/geo"
	"github.com/minesight/tilecore/pkg/core"
)

// Unit is the preferred display unit for distances.
type Unit string

const (
	UnitMeter     Unit = "meter"
	UnitKilometer Unit = "kilometer"
)

// ParseUnit validates a unit name.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(s); u {
	case UnitMeter, UnitKilometer:
		return u, nil
	default:
		return "", fmt.Errorf("invalid unit type %q", s)
	}
}

const (
	kilometer       = 1000.0
	squareKilometer = 1000000.0
)

// Result is the computed value of a measurement and its display form.
type Result struct {
	Kind        core.MeasurementKind
	Value       core.MeasurementValue
	DisplayText string
	Coord       string
}

func unknownResult() Result {
	return Result{Kind: core.KindUnknown}
}

// Compute evaluates positions as a measurement of the given kind. It never
// panics: any failure yields an unknown, zero-valued result.
func Compute(kind core.MeasurementKind, positions []r3.Vector, unit Unit) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = unknownResult()
		}
	}()

	if len(positions) == 0 {
		return unknownResult()
	}

	switch kind {
	case core.KindPoint:
		return pointResult(positions[len(positions)-1])
	case core.KindPolygon:
		return polygonResult(positions)
	default:
		return polylineResult(positions, unit)
	}
}

func pointResult(p r3.Vector) Result {
	g, err := geo.GeodeticFromCartesian(p)
	if err != nil {
		return unknownResult()
	}
	lon := strconv.FormatFloat(g.Longitude, 'f', 6, 64)
	lat := strconv.FormatFloat(g.Latitude, 'f', 6, 64)
	height := strconv.FormatFloat(g.Height, 'f', 2, 64)

	// the stored value matches what the operator sees
	lonV, _ := strconv.ParseFloat(lon, 64)
	latV, _ := strconv.ParseFloat(lat, 64)
	heightV, _ := strconv.ParseFloat(height, 64)

	return Result{
		Kind:        core.KindPoint,
		Value:       core.CoordValue(lonV, latV, heightV),
		DisplayText: fmt.Sprintf("(%s, %s, %sm)", lon, lat, height),
		Coord:       fmt.Sprintf("%s, %s, %s", lon, lat, height),
	}
}

func polylineResult(positions []r3.Vector, unit Unit) Result {
	if len(positions) < 2 {
		return Result{Kind: core.KindPolyline, Value: core.ScalarValue(0), DisplayText: "Distance: 0 m"}
	}
	d := PolylineLength(positions)
	return Result{
		Kind:        core.KindPolyline,
		Value:       core.ScalarValue(d),
		DisplayText: FormatDistance(d, unit),
	}
}

func polygonResult(positions []r3.Vector) Result {
	if len(positions) < 3 {
		return Result{Kind: core.KindPolygon, Value: core.ScalarValue(0), DisplayText: "Polygon: not enough points"}
	}
	a := PolygonArea3D(positions)
	return Result{
		Kind:        core.KindPolygon,
		Value:       core.ScalarValue(a),
		DisplayText: FormatArea(a),
	}
}

// PolylineLength sums the straight 3D distances between consecutive points.
func PolylineLength(points []r3.Vector) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += points[i-1].Distance(points[i])
	}
	return total
}

// PolygonArea3D fans triangles out from the first point and sums their
// areas. Exact for planar convex rings; self-intersecting or strongly
// non-planar rings are over-estimated.
func PolygonArea3D(points []r3.Vector) float64 {
	if len(points) < 3 {
		return 0
	}
	ref := points[0]
	var area float64
	for i := 1; i < len(points)-1; i++ {
		v1 := points[i].Sub(ref)
		v2 := points[i+1].Sub(ref)
		area += v1.Cross(v2).Norm() / 2
	}
	return math.Abs(area)
}

// FormatDistance renders meters, switching to kilometers when asked to or
// once the distance reaches one kilometer.
func FormatDistance(d float64, unit Unit) string {
	if unit == UnitKilometer || d >= kilometer {
		return fmt.Sprintf("Distance: %.3f km", d/kilometer)
	}
	return fmt.Sprintf("Distance: %.2f m", d)
}

// FormatArea renders square meters, switching to square kilometers at 1 km².
func FormatArea(a float64) string {
	if a >= squareKilometer {
		return fmt.Sprintf("Area: %.3f km²", a/squareKilometer)
	}
	return fmt.Sprintf("Area: %.2f m²", a)
}
