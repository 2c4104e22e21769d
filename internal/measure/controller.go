package measure

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/scene"
)

// ErrNoSession is returned when an operation needs an active measurement.
var ErrNoSession = errors.New("no active measurement")

const (
	cursorDrawing = "crosshair"
	cursorDefault = "default"
)

// FinalizeFunc receives every record produced by a successful finalize.
type FinalizeFunc func(core.MeasurementRecord)

// Controller keeps at most one active Session and translates screen input
// into session operations. Finalized geometry stays drawn until Forget.
type Controller struct {
	log      *slog.Logger
	renderer scene.Renderer
	unit     Unit
	nextID   func() string
	onRecord FinalizeFunc
	now      func() time.Time

	active *Session
	drafts int
	drawn  map[string]scene.EntityHandle
}

// NewController creates a controller. nextID supplies record ids.
func NewController(r scene.Renderer, nextID func() string, onRecord FinalizeFunc, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		log:      log.With("component", "measure"),
		renderer: r,
		unit:     UnitMeter,
		nextID:   nextID,
		onRecord: onRecord,
		now:      time.Now,
		drawn:    make(map[string]scene.EntityHandle),
	}
}

// Active returns the current session, or nil when idle.
func (c *Controller) Active() *Session {
	return c.active
}

// State reports the state of the active session, Idle when there is none.
func (c *Controller) State() State {
	if c.active == nil {
		return StateIdle
	}
	return c.active.State()
}

func (c *Controller) Unit() Unit { return c.unit }

// SetUnit changes the display unit for the active and later sessions.
func (c *Controller) SetUnit(u Unit) {
	c.unit = u
	if c.active != nil {
		c.active.SetUnit(u)
	}
}

// Start begins a new measurement. A session already in progress is
// finalized first, which cancels it when it has too few points.
func (c *Controller) Start(kind core.MeasurementKind) (*Session, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("start measurement: unsupported kind %q", kind)
	}
	if c.renderer == nil {
		c.log.Warn("Renderer not available, measurement not started")
		return nil, ErrNoSession
	}
	if c.active != nil {
		if c.active.State() == StatePaused {
			c.active.Resume()
		}
		c.Finalize()
	}

	c.drafts++
	c.active = newSession(c.renderer, kind, c.unit, fmt.Sprintf("draft-%d", c.drafts), c.log)
	c.setCursor(cursorDrawing)
	c.log.Debug("Measurement started", "kind", kind)
	return c.active, nil
}

// Pick commits the surface position under p. Misses are ignored.
func (c *Controller) Pick(p scene.ScreenPoint) bool {
	if c.active == nil || c.active.State() != StateDrawing {
		return false
	}
	pos, ok := c.renderer.PickSurfacePosition(p)
	if !ok {
		return false
	}
	return c.active.AddPoint(pos)
}

// Move previews the surface position under p.
func (c *Controller) Move(p scene.ScreenPoint) (Result, bool) {
	if c.active == nil || c.active.State() != StateDrawing {
		return Result{}, false
	}
	pos, ok := c.renderer.PickSurfacePosition(p)
	if !ok {
		return c.active.Result(), false
	}
	return c.active.UpdatePreview(pos)
}

// Finalize ends the active session. On success the record is handed to the
// FinalizeFunc and its geometry kept on screen under the record id.
func (c *Controller) Finalize() (core.MeasurementRecord, bool) {
	s := c.active
	if s == nil || s.State() != StateDrawing {
		return core.MeasurementRecord{}, false
	}
	c.active = nil
	c.setCursor(cursorDefault)

	rec, ok := s.Finalize(c.nextID, c.now())
	if !ok {
		return core.MeasurementRecord{}, false
	}
	if s.entity != nil {
		c.drawn[rec.ID] = s.entity
	}
	c.log.Info("Measurement finalized", "id", rec.ID, "kind", rec.Kind, "value", rec.DisplayText)
	if c.onRecord != nil {
		c.onRecord(rec)
	}
	return rec, true
}

// Cancel discards the active session.
func (c *Controller) Cancel() bool {
	if c.active == nil {
		return false
	}
	ok := c.active.Cancel()
	c.active = nil
	c.setCursor(cursorDefault)
	return ok
}

func (c *Controller) Pause() bool {
	if c.active == nil || !c.active.Pause() {
		return false
	}
	c.setCursor(cursorDefault)
	return true
}

func (c *Controller) Resume() bool {
	if c.active == nil || !c.active.Resume() {
		return false
	}
	c.setCursor(cursorDrawing)
	return true
}

// Forget removes the geometry drawn for a finalized record.
func (c *Controller) Forget(id string) {
	h, ok := c.drawn[id]
	if !ok {
		return
	}
	delete(c.drawn, id)
	if c.renderer != nil {
		c.renderer.RemoveVisualEntity(h)
	}
}

// ForgetAll removes the geometry of every finalized record.
func (c *Controller) ForgetAll() {
	for id := range c.drawn {
		c.Forget(id)
	}
}

// Destroy cancels the active session and removes all drawn geometry.
func (c *Controller) Destroy() {
	c.Cancel()
	c.ForgetAll()
}

func (c *Controller) setCursor(style string) {
	if cs, ok := c.renderer.(scene.CursorSetter); ok {
		cs.SetCursor(style)
	}
}
