// Package section derives axis-aligned clipping planes for section views and
// applies them to the loaded tileset.
package section

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/scene"
)

// ErrNoTarget is returned when there is no renderer or tileset to clip.
var ErrNoTarget = errors.New("no tileset to clip")

// DerivePlane returns the plane for cfg: the unit normal of its axis and its
// offset unchanged. Unknown axes fall back to z.
func DerivePlane(cfg core.SectionConfig) core.Plane {
	var n r3.Vector
	switch cfg.Axis {
	case core.AxisX:
		n = r3.Vector{X: 1}
	case core.AxisY:
		n = r3.Vector{Y: 1}
	default:
		n = r3.Vector{Z: 1}
	}
	return core.Plane{Normal: n, Offset: cfg.Offset}
}

// Apply clips ts with plane when cfg is visible and clears its clipping
// otherwise.
func Apply(r scene.Renderer, ts scene.Tileset, plane core.Plane, cfg core.SectionConfig) error {
	if r == nil || ts == nil {
		return ErrNoTarget
	}
	if !cfg.Visible {
		r.SetClippingPlanes(ts, nil, scene.ClippingStyle{})
		return nil
	}
	edge, err := ParseColor(cfg.Color)
	if err != nil {
		return fmt.Errorf("failed to create clipping plane: %w", err)
	}
	r.SetClippingPlanes(ts, []core.Plane{plane}, scene.ClippingStyle{
		EdgeWidth: cfg.Thickness,
		EdgeColor: edge,
	})
	return nil
}

// Params is a partial update from the section panel. Nil fields are left
// unchanged.
type Params struct {
	Axis      *core.SectionAxis `json:"direction,omitempty"`
	Offset    *float64          `json:"position,omitempty"`
	Thickness *float64          `json:"thickness,omitempty"`
	Visible   *bool             `json:"showPlane,omitempty"`
	Color     *string           `json:"color,omitempty"`
	Opacity   *float64          `json:"opacity,omitempty"`
}

// Controller holds the section state of a viewer session.
type Controller struct {
	log      *slog.Logger
	renderer scene.Renderer
	tileset  scene.Tileset
	enabled  bool
	config   core.SectionConfig
}

// NewController starts disabled with cfg.
func NewController(r scene.Renderer, cfg core.SectionConfig, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		log:      log.With("component", "section"),
		renderer: r,
		config:   cfg,
	}
}

func (c *Controller) Config() core.SectionConfig { return c.config }
func (c *Controller) Enabled() bool              { return c.enabled }

// SetTileset changes the clipped tileset. Nil detaches it.
func (c *Controller) SetTileset(ts scene.Tileset) {
	c.tileset = ts
}

// SetEnabled turns sectioning on, applying the current plane, or off,
// clearing it.
func (c *Controller) SetEnabled(on bool) error {
	c.enabled = on
	if on {
		return c.apply()
	}
	return c.clear()
}

// Update merges p into the configuration and reapplies it when enabled.
func (c *Controller) Update(p Params) error {
	if p.Axis != nil {
		c.config.Axis = *p.Axis
	}
	if p.Offset != nil {
		c.config.Offset = *p.Offset
	}
	if p.Thickness != nil {
		c.config.Thickness = *p.Thickness
	}
	if p.Visible != nil {
		c.config.Visible = *p.Visible
	}
	if p.Color != nil {
		c.config.Color = *p.Color
	}
	if p.Opacity != nil {
		c.config.Opacity = *p.Opacity
	}
	if !c.enabled {
		return nil
	}
	return c.apply()
}

// Reset restores offset, thickness and opacity and clears clipping. Axis and
// visibility are kept.
func (c *Controller) Reset() error {
	def := core.DefaultSectionConfig()
	c.config.Offset = def.Offset
	c.config.Thickness = def.Thickness
	c.config.Opacity = def.Opacity
	return c.clear()
}

func (c *Controller) apply() error {
	err := Apply(c.renderer, c.tileset, DerivePlane(c.config), c.config)
	if errors.Is(err, ErrNoTarget) {
		c.log.Debug("No tileset loaded, section not applied")
		return nil
	}
	if err != nil {
		c.log.Warn("Failed to apply section plane", "error", err)
	}
	return err
}

func (c *Controller) clear() error {
	if c.renderer == nil || c.tileset == nil {
		return nil
	}
	c.renderer.SetClippingPlanes(c.tileset, nil, scene.ClippingStyle{})
	return nil
}
