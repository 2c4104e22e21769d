package transform

import (
	"errors"
	"log/slog"

	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/scene"
)

// ErrNoModel is returned when no tileset is loaded or its reference matrix is gone.
var ErrNoModel = errors.New("model not loaded or reference matrix missing")

// Model owns the placement of one loaded tileset.
type Model struct {
	log      *slog.Logger
	defaults core.Placement

	tileset      scene.Tileset
	reference    core.Matrix4
	hasReference bool
	placement    core.Placement
}

// NewModel creates an empty model holder. defaults is used on load and reset.
func NewModel(defaults core.Placement, log *slog.Logger) *Model {
	if log == nil {
		log = slog.Default()
	}
	return &Model{
		log:       log.With("component", "transform"),
		defaults:  defaults,
		placement: defaults,
	}
}

// Load captures the tileset's current matrix as the reference and applies
// the default placement. A previously loaded tileset is released first.
func (m *Model) Load(ts scene.Tileset) error {
	if ts == nil {
		m.log.Error("Load called without a tileset")
		return ErrNoModel
	}
	if m.tileset != nil {
		m.Unload()
	}
	m.tileset = ts
	m.reference = ts.ModelMatrix()
	m.hasReference = true
	m.log.Info("Model loaded, reference matrix captured")
	return m.Apply(m.defaults)
}

// Unload drops the tileset and invalidates the reference matrix.
func (m *Model) Unload() {
	m.tileset = nil
	m.reference = core.Matrix4{}
	m.hasReference = false
	m.placement = m.defaults
}

// Loaded reports whether a tileset with a reference matrix is held.
func (m *Model) Loaded() bool {
	return m.tileset != nil && m.hasReference
}

// Tileset returns the held tileset, or nil.
func (m *Model) Tileset() scene.Tileset {
	return m.tileset
}

// Reference returns the matrix captured at load.
func (m *Model) Reference() (core.Matrix4, bool) {
	return m.reference, m.hasReference
}

// Placement returns the last applied placement.
func (m *Model) Placement() core.Placement {
	return m.placement
}

// Apply recomposes the model matrix from the reference. Without a model it
// logs and leaves everything unchanged.
func (m *Model) Apply(p core.Placement) error {
	if !m.Loaded() {
		m.log.Error("Cannot apply placement", "error", ErrNoModel)
		return ErrNoModel
	}
	matrix := Compose(m.reference, m.tileset.BoundingCenter(), p)
	m.tileset.SetModelMatrix(matrix)
	m.placement = p
	m.log.Debug("Placement applied",
		"longitude", p.Position.Longitude,
		"latitude", p.Position.Latitude,
		"height", p.Position.Height,
		"rx", p.Rotation.X, "ry", p.Rotation.Y, "rz", p.Rotation.Z,
	)
	return nil
}

// SetPosition moves the model, keeping the current rotation.
func (m *Model) SetPosition(g core.Geodetic) error {
	p := m.placement
	p.Position = g
	return m.Apply(p)
}

// SetRotation rotates the model, keeping the current position.
func (m *Model) SetRotation(r core.Rotation) error {
	p := m.placement
	p.Rotation = r
	return m.Apply(p)
}

// Reset restores the default placement.
func (m *Model) Reset() (core.Placement, error) {
	if err := m.Apply(m.defaults); err != nil {
		return core.Placement{}, err
	}
	return m.defaults, nil
}
