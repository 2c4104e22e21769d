package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/wroge/wgs84"
)

// GEODETIC POINTS
// Cartesian points are WGS84 earth-centered earth-fixed (EPSG:4978) meters, the frame
// tilesets and surface picks are expressed in. Geodetic points are EPSG:4326 degrees plus
// ellipsoidal height.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

const (
	epsgGeographic = 4326
	epsgGeocentric = 4978

	// WGS84 semi-axes, meters
	semiMajorAxis = 6378137.0
	semiMinorAxis = 6356752.3142451793
)

var (
	toGeocentric = wgs84.EPSG().Transform(epsgGeographic, epsgGeocentric)
	toGeographic = wgs84.EPSG().Transform(epsgGeocentric, epsgGeographic)
)

// CartesianFromGeodetic converts degrees/height into an ECEF position.
func CartesianFromGeodetic(g core.Geodetic) r3.Vector {
	x, y, z := toGeocentric(g.Longitude, g.Latitude, g.Height)
	return r3.Vector{X: x, Y: y, Z: z}
}

// GeodeticFromCartesian reverse-projects an ECEF position onto the ellipsoid.
func GeodeticFromCartesian(p r3.Vector) (core.Geodetic, error) {
	if p.Norm() == 0 {
		return core.Geodetic{}, ErrInvalidCoordinates
	}
	lon, lat, h := toGeographic(p.X, p.Y, p.Z)
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsNaN(h) {
		return core.Geodetic{}, ErrInvalidCoordinates
	}
	return core.Geodetic{Longitude: lon, Latitude: lat, Height: h}, nil
}

// GeodeticSurfaceNormal returns the ellipsoid normal through p.
func GeodeticSurfaceNormal(p r3.Vector) r3.Vector {
	const a2 = semiMajorAxis * semiMajorAxis
	const b2 = semiMinorAxis * semiMinorAxis
	return r3.Vector{X: p.X / a2, Y: p.Y / a2, Z: p.Z / b2}.Normalize()
}

// EastNorthUpToFixedFrame returns the transform from a local east-north-up
// frame centered at origin into the earth-fixed frame.
func EastNorthUpToFixedFrame(origin r3.Vector) core.Matrix4 {
	up := GeodeticSurfaceNormal(origin)
	east := r3.Vector{X: -origin.Y, Y: origin.X}
	if east.Norm() < 1e-9 {
		// on the polar axis east is undefined; pick +Y like other globe engines
		east = r3.Vector{Y: 1}
	} else {
		east = east.Normalize()
	}
	north := up.Cross(east)
	return core.FromColumns(east, north, up, origin)
}

// GeodeticFromString parses a string in the format "long,lat" or "long,lat,height"
func GeodeticFromString(coords string) (core.Geodetic, error) {
	v, err := parseTriple(coords, 2)
	if err != nil {
		return core.Geodetic{}, err
	}
	if v[0] < -180 || v[0] > 180 || v[1] < -90 || v[1] > 90 {
		return core.Geodetic{}, ErrInvalidCoordinates
	}
	return core.Geodetic{Longitude: v[0], Latitude: v[1], Height: v[2]}, nil
}

// RotationFromString parses "rx,ry,rz" degrees; missing trailing axes are zero.
func RotationFromString(angles string) (core.Rotation, error) {
	v, err := parseTriple(angles, 1)
	if err != nil {
		return core.Rotation{}, err
	}
	return core.Rotation{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Point3DFromString parses "x,y,z" cartesian meters.
func Point3DFromString(coords string) (r3.Vector, error) {
	v, err := parseTriple(coords, 3)
	if err != nil {
		return r3.Vector{}, err
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

// parseTriple reads up to three comma separated floats, requiring at least min.
// Components beyond the third are ignored.
func parseTriple(s string, min int) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(s, ",")
	if strings.TrimSpace(s) == "" || len(parts) < min {
		return out, ErrInvalidCoordinates
	}
	for i := 0; i < len(parts) && i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return out, ErrInvalidCoordinates
		}
		out[i] = f
	}
	return out, nil
}
