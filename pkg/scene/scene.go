// Package scene declares what tilecore needs from the host 3D renderer.
// The renderer, the tile streaming and the visual styling live on the
// host side; tilecore only talks to them through these interfaces.
package scene

import (
	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/pkg/core"
)

// ScreenPoint is a pointer position in canvas pixels.
type ScreenPoint struct {
	X, Y float64
}

// Feature is an individually addressable object inside tile content.
type Feature interface {
	// PropertyValue returns the batch-table value for name.
	PropertyValue(name string) (any, bool)
}

// InternalIdentifier is implemented by features the renderer already
// assigned an id to.
type InternalIdentifier interface {
	InternalID() string
}

// Colorable is implemented by features whose color can be changed.
type Colorable interface {
	Color() core.Color
	SetColor(core.Color)
}

// Content is the payload of a loaded tile.
type Content interface {
	FeatureCount() int
	FeatureAt(i int) Feature
}

// Tile is a node of the tileset hierarchy. Content is nil until loaded.
type Tile interface {
	Content() Content
	Children() []Tile
}

// Tileset is a loaded hierarchical model.
type Tileset interface {
	Root() Tile
	ModelMatrix() core.Matrix4
	SetModelMatrix(core.Matrix4)
	// BoundingCenter is the root bounding sphere center before the model
	// matrix is applied.
	BoundingCenter() r3.Vector
}

// EntityKind selects how a visual entity is drawn.
type EntityKind string

const (
	EntityPoint    EntityKind = "point"
	EntityPolyline EntityKind = "polyline"
	EntityPolygon  EntityKind = "polygon"
)

// EntitySpec describes a visual entity to draw.
type EntitySpec struct {
	ID        string
	Kind      EntityKind
	Positions []r3.Vector
	Label     string
}

// EntityHandle identifies an entity added to the renderer.
type EntityHandle any

// ClippingStyle styles the edge drawn where a clipping plane cuts.
type ClippingStyle struct {
	EdgeWidth float64
	EdgeColor core.Color
}

// Renderer is the host 3D view.
type Renderer interface {
	PickSurfacePosition(p ScreenPoint) (r3.Vector, bool)
	AddVisualEntity(spec EntitySpec) EntityHandle
	RemoveVisualEntity(h EntityHandle)
	// SetClippingPlanes replaces the tileset clipping collection. An empty
	// plane list clears it.
	SetClippingPlanes(ts Tileset, planes []core.Plane, style ClippingStyle)
	// OnTileLoaded registers a standing callback and returns a function
	// that removes it.
	OnTileLoaded(ts Tileset, cb func(Tile)) (unsubscribe func())
}

// EntityUpdater is implemented by renderers that can restyle an entity in
// place instead of removing and re-adding it.
type EntityUpdater interface {
	UpdateVisualEntity(h EntityHandle, spec EntitySpec)
}

// CursorSetter is implemented by renderers that expose the canvas cursor.
type CursorSetter interface {
	SetCursor(style string)
}
