// Package transform places a tileset on the globe.
//
// A placement is always recomposed from the reference matrix captured when the
// model was loaded, so replaying the same placement yields the same matrix.
package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/internal/geo"
	"github.com/minesight/tilecore/pkg/core"
)

// Compose returns the model matrix that puts a tileset whose root bounding
// center is localCenter at p.Position, rotated by p.Rotation in the local
// east-north-up frame. reference is not modified.
func Compose(reference core.Matrix4, localCenter r3.Vector, p core.Placement) core.Matrix4 {
	m := reference

	center := m.MultiplyPoint(localCenter)
	target := geo.CartesianFromGeodetic(p.Position)
	m = core.Translation4(target.Sub(center)).Mul(m)

	if p.Rotation.IsZero() {
		return m
	}
	return localRotation(m.MultiplyPoint(localCenter), p.Rotation).Mul(m)
}

// localRotation expresses rot (X, then Y, then Z) about the ENU frame at
// origin as a world-space transform.
func localRotation(origin r3.Vector, rot core.Rotation) core.Matrix4 {
	toWorld := geo.EastNorthUpToFixedFrame(origin)
	toLocal := toWorld.InverseRigid()

	r := core.Identity4()
	if rot.X != 0 {
		r = core.RotationX(toRadians(rot.X)).Mul(r)
	}
	if rot.Y != 0 {
		r = core.RotationY(toRadians(rot.Y)).Mul(r)
	}
	if rot.Z != 0 {
		r = core.RotationZ(toRadians(rot.Z)).Mul(r)
	}

	return toWorld.Mul(r.Mul(toLocal))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
