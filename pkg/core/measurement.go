// pkg/core/measurement.go
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang/geo/r3"
)

// MeasurementKind is the geometry a measurement captures.
type MeasurementKind string

const (
	KindPoint    MeasurementKind = "point"
	KindPolyline MeasurementKind = "polyline"
	KindPolygon  MeasurementKind = "polygon"
	KindUnknown  MeasurementKind = "unknown"
)

// MinPoints is the number of committed points needed to finalize.
func (k MeasurementKind) MinPoints() int {
	switch k {
	case KindPolyline:
		return 2
	case KindPolygon:
		return 3
	default:
		return 1
	}
}

// Valid reports whether k is one of the drawable kinds.
func (k MeasurementKind) Valid() bool {
	return k == KindPoint || k == KindPolyline || k == KindPolygon
}

// ParseMeasurementKind maps a UI string onto a kind.
func ParseMeasurementKind(s string) (MeasurementKind, error) {
	k := MeasurementKind(s)
	if !k.Valid() {
		return KindUnknown, fmt.Errorf("unknown measurement kind %q", s)
	}
	return k, nil
}

// Point3D is the serializable form of a cartesian (ECEF) point.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vector converts to an r3 vector for math.
func (p Point3D) Vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// PointFromVector converts an r3 vector to its serializable form.
func PointFromVector(v r3.Vector) Point3D {
	return Point3D{X: v.X, Y: v.Y, Z: v.Z}
}

// MeasurementValue is either a scalar (distance, area) or a coordinate
// triple (longitude, latitude, height) for point measurements.
type MeasurementValue struct {
	Scalar float64
	Coords []float64
}

// ScalarValue wraps a distance or area.
func ScalarValue(v float64) MeasurementValue {
	return MeasurementValue{Scalar: v}
}

// CoordValue wraps a longitude/latitude/height triple.
func CoordValue(lon, lat, height float64) MeasurementValue {
	return MeasurementValue{Coords: []float64{lon, lat, height}}
}

// IsCoord reports whether the value holds coordinates.
func (v MeasurementValue) IsCoord() bool {
	return v.Coords != nil
}

// MarshalJSON writes a number or an array of numbers.
func (v MeasurementValue) MarshalJSON() ([]byte, error) {
	if v.Coords != nil {
		return json.Marshal(v.Coords)
	}
	return json.Marshal(v.Scalar)
}

// UnmarshalJSON accepts a number, an array of numbers, or an array of
// numeric strings (older histories stored fixed-point strings).
func (v *MeasurementValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = MeasurementValue{}
		return nil
	}
	if data[0] != '[' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			var s string
			if json.Unmarshal(data, &s) != nil {
				return fmt.Errorf("measurement value: %w", err)
			}
			if f, err = strconv.ParseFloat(s, 64); err != nil {
				return fmt.Errorf("measurement value %q: %w", s, err)
			}
		}
		*v = MeasurementValue{Scalar: f}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("measurement value: %w", err)
	}
	coords := make([]float64, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &coords[i]); err == nil {
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return fmt.Errorf("measurement value element %d: %w", i, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("measurement value element %d: %w", i, err)
		}
		coords[i] = f
	}
	*v = MeasurementValue{Coords: coords}
	return nil
}

// MeasurementRecord is a finalized measurement. It is never mutated
// after creation and carries no renderer handles.
type MeasurementRecord struct {
	ID          string           `json:"id"`
	Kind        MeasurementKind  `json:"type"`
	Value       MeasurementValue `json:"value"`
	DisplayText string           `json:"valueText"`
	Timestamp   time.Time        `json:"timestamp"`
	Coord       string           `json:"coord"`
	Points      []Point3D        `json:"points"`
}

// Vectors returns the record's points for math.
func (r MeasurementRecord) Vectors() []r3.Vector {
	out := make([]r3.Vector, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Vector()
	}
	return out
}
