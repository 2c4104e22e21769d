package geo

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVecInDelta(t *testing.T, want, got r3.Vector, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, "X")
	assert.InDelta(t, want.Y, got.Y, delta, "Y")
	assert.InDelta(t, want.Z, got.Z, delta, "Z")
}

func TestCartesianFromGeodetic_Equator(t *testing.T) {
	p := CartesianFromGeodetic(core.Geodetic{})
	assertVecInDelta(t, r3.Vector{X: semiMajorAxis}, p, 1e-3)

	p = CartesianFromGeodetic(core.Geodetic{Longitude: 90})
	assertVecInDelta(t, r3.Vector{Y: semiMajorAxis}, p, 1e-3)
}

func TestCartesianFromGeodetic_NorthPole(t *testing.T) {
	p := CartesianFromGeodetic(core.Geodetic{Latitude: 90})
	assertVecInDelta(t, r3.Vector{Z: semiMinorAxis}, p, 1e-3)
}

func TestCartesianFromGeodetic_Height(t *testing.T) {
	p := CartesianFromGeodetic(core.Geodetic{Height: 100})
	assertVecInDelta(t, r3.Vector{X: semiMajorAxis + 100}, p, 1e-3)
}

func TestGeodeticRoundTrip(t *testing.T) {
	cases := []core.Geodetic{
		{Longitude: 113.323, Latitude: 23.106, Height: 50},
		{Longitude: -70.5, Latitude: -33.4, Height: 2500},
		{Longitude: 12.0, Latitude: 65.0, Height: -120},
	}
	for _, want := range cases {
		got, err := GeodeticFromCartesian(CartesianFromGeodetic(want))
		require.NoError(t, err)
		assert.InDelta(t, want.Longitude, got.Longitude, 1e-6)
		assert.InDelta(t, want.Latitude, got.Latitude, 1e-6)
		assert.InDelta(t, want.Height, got.Height, 1e-2)
	}
}

func TestGeodeticFromCartesian_Origin(t *testing.T) {
	_, err := GeodeticFromCartesian(r3.Vector{})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestEastNorthUpToFixedFrame_Equator(t *testing.T) {
	origin := r3.Vector{X: semiMajorAxis}
	m := EastNorthUpToFixedFrame(origin)

	assertVecInDelta(t, r3.Vector{Y: 1}, m.Column(0), 1e-12)
	assertVecInDelta(t, r3.Vector{Z: 1}, m.Column(1), 1e-12)
	assertVecInDelta(t, r3.Vector{X: 1}, m.Column(2), 1e-12)
	assert.Equal(t, origin, m.Origin())
}

func TestEastNorthUpToFixedFrame_Orthonormal(t *testing.T) {
	origin := CartesianFromGeodetic(core.Geodetic{Longitude: 113.323, Latitude: 23.106, Height: 50})
	m := EastNorthUpToFixedFrame(origin)
	e, n, u := m.Column(0), m.Column(1), m.Column(2)

	assert.InDelta(t, 1, e.Norm(), 1e-12)
	assert.InDelta(t, 1, n.Norm(), 1e-12)
	assert.InDelta(t, 1, u.Norm(), 1e-12)
	assert.InDelta(t, 0, e.Dot(n), 1e-12)
	assert.InDelta(t, 0, e.Dot(u), 1e-12)
	assert.InDelta(t, 0, n.Dot(u), 1e-12)
	// right-handed
	assertVecInDelta(t, u, e.Cross(n), 1e-12)
	// up points away from the earth center
	assert.Greater(t, u.Dot(origin), 0.0)
}

func TestEastNorthUpToFixedFrame_Pole(t *testing.T) {
	m := EastNorthUpToFixedFrame(r3.Vector{Z: semiMinorAxis})

	assertVecInDelta(t, r3.Vector{Y: 1}, m.Column(0), 1e-12)
	assertVecInDelta(t, r3.Vector{X: -1}, m.Column(1), 1e-12)
	assertVecInDelta(t, r3.Vector{Z: 1}, m.Column(2), 1e-12)
}

func TestGeodeticFromString_ValidWithHeight(t *testing.T) {
	g, err := GeodeticFromString("113.323,23.106,50.0")

	require.NoError(t, err)
	assert.Equal(t, 113.323, g.Longitude)
	assert.Equal(t, 23.106, g.Latitude)
	assert.Equal(t, 50.0, g.Height)
}

func TestGeodeticFromString_ValidWithoutHeight(t *testing.T) {
	g, err := GeodeticFromString("-100.5, -20.25")

	require.NoError(t, err)
	assert.Equal(t, -100.5, g.Longitude)
	assert.Equal(t, -20.25, g.Latitude)
	assert.Equal(t, 0.0, g.Height)
}

func TestGeodeticFromString_ExtraComponents(t *testing.T) {
	// Extra components beyond 3 should be ignored
	g, err := GeodeticFromString("100.5,20.25,50.0,extra,ignored")

	require.NoError(t, err)
	assert.Equal(t, 50.0, g.Height)
}

func TestGeodeticFromString_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"too few":       "100.5",
		"bad longitude": "abc,20.25",
		"bad latitude":  "100.5,xyz",
		"bad height":    "100.5,20.25,invalid",
		"lat range":     "100,95",
		"lon range":     "181,0",
		"nan":           "NaN,0",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := GeodeticFromString(in)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}
}

func TestRotationFromString(t *testing.T) {
	r, err := RotationFromString("15")
	require.NoError(t, err)
	assert.Equal(t, core.Rotation{X: 15}, r)

	r, err = RotationFromString("1e1,-20,30")
	require.NoError(t, err)
	assert.Equal(t, core.Rotation{X: 10, Y: -20, Z: 30}, r)

	_, err = RotationFromString("x")
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestPoint3DFromString(t *testing.T) {
	p, err := Point3DFromString("1,2,3")
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, p)

	_, err = Point3DFromString("1,2")
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}
