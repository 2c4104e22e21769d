// pkg/core/placement.go
package core

// Geodetic is a WGS84 position in degrees and meters above the ellipsoid.
type Geodetic struct {
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Height    float64 `json:"height" mapstructure:"height"`
}

// Rotation holds per-axis rotations in degrees, applied X then Y then Z
// in the local east-north-up frame.
type Rotation struct {
	X float64 `json:"rx" mapstructure:"x"`
	Y float64 `json:"ry" mapstructure:"y"`
	Z float64 `json:"rz" mapstructure:"z"`
}

// IsZero reports whether no axis is rotated.
func (r Rotation) IsZero() bool {
	return r.X == 0 && r.Y == 0 && r.Z == 0
}

// Placement positions and orients a model.
type Placement struct {
	Position Geodetic `json:"position" mapstructure:"position"`
	Rotation Rotation `json:"rotation" mapstructure:"rotation"`
}

// DefaultPlacement is where a freshly loaded model is put.
var DefaultPlacement = Placement{
	Position: Geodetic{Longitude: 113.323, Latitude: 23.106, Height: 50},
	Rotation: Rotation{X: 15},
}
