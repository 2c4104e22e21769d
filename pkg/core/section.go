// pkg/core/section.go
package core

import "github.com/golang/geo/r3"

// SectionAxis selects the clipping plane normal.
type SectionAxis string

const (
	AxisX SectionAxis = "x"
	AxisY SectionAxis = "y"
	AxisZ SectionAxis = "z"
)

// SectionConfig describes a section view. It lives only for the session.
type SectionConfig struct {
	Axis      SectionAxis `json:"axis" mapstructure:"axis"`
	Offset    float64     `json:"offset" mapstructure:"offset"`
	Thickness float64     `json:"thickness" mapstructure:"thickness"`
	Color     string      `json:"color" mapstructure:"color"`
	Opacity   float64     `json:"opacity" mapstructure:"opacity"`
	Visible   bool        `json:"visible" mapstructure:"visible"`
}

// DefaultSectionConfig is the state a fresh section panel starts in.
func DefaultSectionConfig() SectionConfig {
	return SectionConfig{
		Axis:      AxisX,
		Offset:    0,
		Thickness: 1,
		Color:     "#ff6600",
		Opacity:   50,
		Visible:   true,
	}
}

// Plane is a clipping plane in Hessian normal form.
type Plane struct {
	Normal r3.Vector
	Offset float64
}

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// WithAlpha returns c with its alpha replaced.
func (c Color) WithAlpha(a float64) Color {
	c.A = a
	return c
}

var (
	ColorWhite  = Color{R: 1, G: 1, B: 1, A: 1}
	ColorYellow = Color{R: 1, G: 1, B: 0, A: 1}
)
