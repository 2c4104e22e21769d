// Package viewer ties the engine components to one viewer session: the
// loaded model, its feature index, the measurement tools, their history and
// the section plane.
package viewer

import (
	"fmt"
	"log/slog"

	"github.com/minesight/tilecore/internal/feature"
	"github.com/minesight/tilecore/internal/history"
	"github.com/minesight/tilecore/internal/measure"
	"github.com/minesight/tilecore/internal/section"
	"github.com/minesight/tilecore/internal/storage/memory"
	"github.com/minesight/tilecore/internal/transform"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/scene"
)

// Options configures a Context. A nil Storage means an in-memory backend
// and a nil FeatureIDs keeps the uuid fallback ids. A zero Placement or
// Section takes the defaults. Unit applies until the operator stores a
// preference.
type Options struct {
	Renderer   scene.Renderer
	Storage    history.Storage
	Sinks      []history.Sink
	Placement  core.Placement
	Section    core.SectionConfig
	Unit       measure.Unit
	FeatureIDs feature.IDFunc
	Logger     *slog.Logger
}

type featureStyle struct {
	visible bool
	opacity float64
}

// Context is the session-scoped owner of every engine component. It is not
// safe for concurrent use; UI events are handled one at a time.
type Context struct {
	log      *slog.Logger
	renderer scene.Renderer

	model   *transform.Model
	index   *feature.Index
	measure *measure.Controller
	history *history.Store
	section *section.Controller

	unsubscribe   func()
	styles        map[string]featureStyle
	globalOpacity float64
	destroyed     bool
}

// New builds a context and restores the persisted history and unit.
func New(opts Options) *Context {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	store := opts.Storage
	if store == nil {
		store = memory.New()
	}

	placement := opts.Placement
	if placement == (core.Placement{}) {
		placement = core.DefaultPlacement
	}
	sectionCfg := opts.Section
	if sectionCfg == (core.SectionConfig{}) {
		sectionCfg = core.DefaultSectionConfig()
	}

	var indexOpts []feature.Option
	if opts.FeatureIDs != nil {
		indexOpts = append(indexOpts, feature.WithFallbackID(opts.FeatureIDs))
	}

	c := &Context{
		log:      log.With("component", "viewer"),
		renderer: opts.Renderer,
		model:    transform.NewModel(placement, log),
		index:    feature.NewIndex(log, indexOpts...),
		history:  history.New(store, log, opts.Sinks...),
		section:  section.NewController(opts.Renderer, sectionCfg, log),
		styles:   make(map[string]featureStyle),
	}
	if opts.Unit != "" {
		c.history.SetDefaultUnit(opts.Unit)
	}
	c.measure = measure.NewController(opts.Renderer, c.history.NextID, c.recordFinalized, log)
	c.measure.SetUnit(c.history.Unit())
	return c
}

func (c *Context) recordFinalized(rec core.MeasurementRecord) {
	if err := c.history.Append(rec); err != nil {
		c.log.Warn("Measurement kept in memory only", "id", rec.ID, "error", err)
	}
}

// LogAttrs describes the session for log records.
func (c *Context) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Bool("modelLoaded", c.model.Loaded()),
		slog.String("measure", c.measure.State().String()),
		slog.Int("features", c.index.Count()),
	}
}

// LoadModel takes ownership of ts: captures its reference matrix, applies the
// default placement, indexes the loaded tiles and follows later tile loads.
func (c *Context) LoadModel(ts scene.Tileset) error {
	if c.renderer == nil {
		c.log.Warn("Renderer not available, model not loaded")
		return nil
	}
	if c.model.Loaded() {
		c.UnloadModel()
	}
	if err := c.model.Load(ts); err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	n := c.index.Scan(ts.Root())
	c.unsubscribe = c.renderer.OnTileLoaded(ts, c.index.OnTileLoad)

	c.section.SetTileset(ts)
	if c.section.Enabled() {
		if err := c.section.Update(section.Params{}); err != nil {
			c.log.Warn("Section not reapplied", "error", err)
		}
	}
	c.log.Info("Model loaded", "features", n)
	return nil
}

// UnloadModel stops following tile loads and forgets the model's features.
func (c *Context) UnloadModel() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if ts := c.model.Tileset(); ts != nil && c.renderer != nil {
		c.renderer.SetClippingPlanes(ts, nil, scene.ClippingStyle{})
	}
	c.section.SetTileset(nil)
	c.model.Unload()
	c.index.Reset()
	c.styles = make(map[string]featureStyle)
}

func (c *Context) ModelLoaded() bool         { return c.model.Loaded() }
func (c *Context) Placement() core.Placement { return c.model.Placement() }

// PlaceModel moves and rotates the model.
func (c *Context) PlaceModel(p core.Placement) error {
	return c.model.Apply(p)
}

// MoveModel changes the position and keeps the rotation.
func (c *Context) MoveModel(g core.Geodetic) error {
	return c.model.SetPosition(g)
}

// RotateModel changes the rotation and keeps the position.
func (c *Context) RotateModel(r core.Rotation) error {
	return c.model.SetRotation(r)
}

// ResetModel restores the default placement.
func (c *Context) ResetModel() (core.Placement, error) {
	return c.model.Reset()
}

// StartMeasurement begins a measurement of kind, ending any session in
// progress first.
func (c *Context) StartMeasurement(kind core.MeasurementKind) error {
	if c.renderer == nil {
		c.log.Warn("Renderer not available, measurement not started")
		return nil
	}
	_, err := c.measure.Start(kind)
	return err
}

func (c *Context) MeasurementState() measure.State { return c.measure.State() }

// Pick commits the surface point under p to the active measurement.
func (c *Context) Pick(p scene.ScreenPoint) bool {
	return c.measure.Pick(p)
}

// Move previews the surface point under p.
func (c *Context) Move(p scene.ScreenPoint) (measure.Result, bool) {
	return c.measure.Move(p)
}

// FinalizeMeasurement ends the active measurement and stores its record.
func (c *Context) FinalizeMeasurement() (core.MeasurementRecord, bool) {
	return c.measure.Finalize()
}

func (c *Context) CancelMeasurement() bool { return c.measure.Cancel() }
func (c *Context) PauseMeasurement() bool  { return c.measure.Pause() }
func (c *Context) ResumeMeasurement() bool { return c.measure.Resume() }

// SetUnit switches the distance unit and remembers it.
func (c *Context) SetUnit(u measure.Unit) error {
	c.measure.SetUnit(u)
	return c.history.SetUnit(u)
}

func (c *Context) Unit() measure.Unit { return c.measure.Unit() }

// History lists the finalized measurements, most recent first.
func (c *Context) History() []core.MeasurementRecord {
	return c.history.List()
}

// Store is the history the session appends to.
func (c *Context) Store() *history.Store { return c.history }

// AddSink subscribes s to later history changes.
func (c *Context) AddSink(s history.Sink) { c.history.AddSink(s) }

// RemoveRecord deletes a record and the geometry drawn for it.
func (c *Context) RemoveRecord(id string) (bool, error) {
	c.measure.Forget(id)
	return c.history.Remove(id)
}

// ClearHistory deletes every record and its geometry.
func (c *Context) ClearHistory() error {
	c.measure.ForgetAll()
	return c.history.Clear()
}

func (c *Context) SectionConfig() core.SectionConfig { return c.section.Config() }
func (c *Context) SectionEnabled() bool              { return c.section.Enabled() }

func (c *Context) EnableSection(on bool) error {
	return c.section.SetEnabled(on)
}

func (c *Context) UpdateSection(p section.Params) error {
	return c.section.Update(p)
}

func (c *Context) ResetSection() error {
	return c.section.Reset()
}

// Features lists the indexed features with their current visibility and
// transparency.
func (c *Context) Features() []feature.CatalogEntry {
	entries := c.index.Catalog()
	for i := range entries {
		if st, ok := c.styles[entries[i].ID]; ok {
			entries[i].Visible = st.visible
			entries[i].Opacity = st.opacity
		}
	}
	return entries
}

func (c *Context) style(id string) featureStyle {
	if st, ok := c.styles[id]; ok {
		return st
	}
	return featureStyle{visible: true}
}

// SetFeatureVisible shows or hides one feature.
func (c *Context) SetFeatureVisible(id string, visible bool) error {
	st := c.style(id)
	if err := c.index.SetVisible(id, visible, st.opacity); err != nil {
		return err
	}
	st.visible = visible
	c.styles[id] = st
	return nil
}

// SetFeatureOpacity sets one feature's transparency percentage.
func (c *Context) SetFeatureOpacity(id string, pct float64) error {
	st := c.style(id)
	if st.visible {
		if err := c.index.UpdateOpacity(id, pct, c.globalOpacity); err != nil {
			return err
		}
	} else if _, ok := c.index.Lookup(id); !ok {
		return feature.ErrUnknownFeature
	}
	st.opacity = pct
	c.styles[id] = st
	return nil
}

// SetGlobalOpacity changes the transparency applied on top of every
// feature's own.
func (c *Context) SetGlobalOpacity(pct float64) feature.BatchResult {
	c.globalOpacity = pct
	return c.index.ResetAllOpacity(c.Features(), pct)
}

// ShowAllFeatures makes every hidden feature visible.
func (c *Context) ShowAllFeatures() feature.BatchResult {
	return c.setAllVisible(true)
}

// HideAllFeatures hides every visible feature.
func (c *Context) HideAllFeatures() feature.BatchResult {
	return c.setAllVisible(false)
}

func (c *Context) setAllVisible(visible bool) feature.BatchResult {
	entries := c.Features()
	var res feature.BatchResult
	if visible {
		res = c.index.ShowAll(entries)
	} else {
		res = c.index.HideAll(entries)
	}
	for _, e := range entries {
		c.styles[e.ID] = featureStyle{visible: e.Visible, opacity: e.Opacity}
	}
	return res
}

// HighlightFeature paints a feature yellow; call the returned function to
// restore it.
func (c *Context) HighlightFeature(id string) (func(), error) {
	return c.index.Highlight(id, c.style(id).opacity)
}

// Destroy tears down every registration the session made. The context must
// not be used afterwards.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.measure.Destroy()
	c.UnloadModel()
	c.log.Info("Viewer destroyed")
}
