// Package measure captures point, polyline and polygon measurements against
// surface picks and computes their distance, area or position.
package measure

import (
	"log/slog"
	"time"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/scene"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StatePaused
	StateFinalized
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateDrawing:
		return "drawing"
	case StatePaused:
		return "paused"
	case StateFinalized:
		return "finalized"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Session is one in-progress measurement. Committed points only change on
// picks; pointer moves produce a separate preview.
type Session struct {
	log      *slog.Logger
	renderer scene.Renderer
	kind     core.MeasurementKind
	unit     Unit
	state    State

	committed []r3.Vector
	preview   []r3.Vector
	result    Result

	entity   scene.EntityHandle
	entityID string
}

func newSession(r scene.Renderer, kind core.MeasurementKind, unit Unit, entityID string, log *slog.Logger) *Session {
	return &Session{
		log:      log,
		renderer: r,
		kind:     kind,
		unit:     unit,
		state:    StateDrawing,
		entityID: entityID,
	}
}

func (s *Session) Kind() core.MeasurementKind { return s.kind }
func (s *Session) State() State               { return s.state }
func (s *Session) Result() Result             { return s.result }

// Points returns a copy of the committed buffer.
func (s *Session) Points() []r3.Vector {
	return append([]r3.Vector(nil), s.committed...)
}

// Preview returns a copy of the last preview buffer.
func (s *Session) Preview() []r3.Vector {
	return append([]r3.Vector(nil), s.preview...)
}

// Active reports whether the session is Drawing or Paused.
func (s *Session) Active() bool {
	return s.state == StateDrawing || s.state == StatePaused
}

// AddPoint commits a picked position. A point measurement keeps only the
// latest pick.
func (s *Session) AddPoint(p r3.Vector) bool {
	if s.state != StateDrawing {
		return false
	}
	if s.kind == core.KindPoint {
		s.committed = []r3.Vector{p}
	} else {
		s.committed = append(s.committed, p)
	}
	s.preview = nil
	s.result = Compute(s.kind, s.committed, s.unit)
	s.draw(s.committed)
	return true
}

// UpdatePreview recomputes the live result as if p were the next point.
// Nothing is previewed before the first pick.
func (s *Session) UpdatePreview(p r3.Vector) (Result, bool) {
	if s.state != StateDrawing || len(s.committed) == 0 {
		return s.result, false
	}
	var preview []r3.Vector
	if s.kind == core.KindPoint {
		preview = []r3.Vector{p}
	} else {
		preview = make([]r3.Vector, 0, len(s.committed)+1)
		preview = append(preview, s.committed...)
		preview = append(preview, p)
	}
	s.preview = preview
	s.result = Compute(s.kind, preview, s.unit)
	s.draw(preview)
	return s.result, true
}

// SetUnit changes the display unit of the live result.
func (s *Session) SetUnit(u Unit) {
	s.unit = u
	if len(s.committed) > 0 {
		s.result = Compute(s.kind, s.committed, s.unit)
	}
}

// Pause stops accepting picks and previews.
func (s *Session) Pause() bool {
	if s.state != StateDrawing {
		return false
	}
	s.state = StatePaused
	return true
}

// Resume returns a paused session to drawing.
func (s *Session) Resume() bool {
	if s.state != StatePaused {
		return false
	}
	s.state = StateDrawing
	return true
}

// Cancel discards the session and its drawn geometry.
func (s *Session) Cancel() bool {
	if !s.Active() {
		return false
	}
	s.removeEntity()
	s.committed = nil
	s.preview = nil
	s.result = Result{}
	s.state = StateCancelled
	return true
}

// Finalize turns the committed points into a record. Too few points cancel
// the session instead. newID is only called on success.
func (s *Session) Finalize(newID func() string, now time.Time) (core.MeasurementRecord, bool) {
	if s.state != StateDrawing {
		return core.MeasurementRecord{}, false
	}
	if len(s.committed) < s.kind.MinPoints() {
		s.log.Debug("Not enough points to finalize measurement",
			"kind", s.kind, "points", len(s.committed), "required", s.kind.MinPoints())
		s.Cancel()
		return core.MeasurementRecord{}, false
	}

	s.preview = nil
	s.result = Compute(s.kind, s.committed, s.unit)
	s.draw(s.committed)
	s.state = StateFinalized

	points := make([]core.Point3D, len(s.committed))
	for i, p := range s.committed {
		points[i] = core.PointFromVector(p)
	}
	return core.MeasurementRecord{
		ID:          newID(),
		Kind:        s.kind,
		Value:       s.result.Value,
		DisplayText: s.result.DisplayText,
		Timestamp:   now,
		Coord:       s.result.Coord,
		Points:      points,
	}, true
}

func (s *Session) entityKind() scene.EntityKind {
	switch s.kind {
	case core.KindPoint:
		return scene.EntityPoint
	case core.KindPolygon:
		return scene.EntityPolygon
	default:
		return scene.EntityPolyline
	}
}

func (s *Session) draw(positions []r3.Vector) {
	if s.renderer == nil {
		return
	}
	spec := scene.EntitySpec{
		ID:        s.entityID,
		Kind:      s.entityKind(),
		Positions: append([]r3.Vector(nil), positions...),
		Label:     s.result.DisplayText,
	}
	if s.entity == nil {
		s.entity = s.renderer.AddVisualEntity(spec)
		return
	}
	if u, ok := s.renderer.(scene.EntityUpdater); ok {
		u.UpdateVisualEntity(s.entity, spec)
		return
	}
	s.renderer.RemoveVisualEntity(s.entity)
	s.entity = s.renderer.AddVisualEntity(spec)
}

func (s *Session) removeEntity() {
	if s.entity != nil && s.renderer != nil {
		s.renderer.RemoveVisualEntity(s.entity)
	}
	s.entity = nil
}
