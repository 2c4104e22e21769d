// Package feature keeps an id lookup of the features inside a streamed
// tileset. Tiles are indexed once when the model loads and then one at a
// time as the renderer reports them loaded; the first tile that carries an
// id owns it.
package feature

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/minesight/tilecore/pkg/scene"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/minesight/tilecore/internal/feature"

// IDProperties are the batch-table properties checked for a feature id,
// highest priority first.
var IDProperties = []string{"id", "ID", "name", "Name", "GUID", "guid", "description"}

// IDFunc generates an id for a feature that exposes none.
type IDFunc func() string

// Index maps feature ids to renderer handles.
type Index struct {
	log        *slog.Logger
	fallbackID IDFunc

	features map[string]scene.Feature
	order    []string
	fallback int

	registered metric.Int64Counter
}

// Option configures an Index.
type Option func(*Index)

// WithFallbackID overrides how ids are generated for features without one.
func WithFallbackID(fn IDFunc) Option {
	return func(ix *Index) {
		ix.fallbackID = fn
	}
}

// NewIndex creates an empty index.
func NewIndex(log *slog.Logger, opts ...Option) *Index {
	if log == nil {
		log = slog.Default()
	}
	ix := &Index{
		log:        log.With("component", "feature"),
		fallbackID: func() string { return "feature_" + uuid.NewString() },
		features:   make(map[string]scene.Feature),
	}
	for _, opt := range opts {
		opt(ix)
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"feature.index.registered",
		metric.WithDescription("Features added to the index"),
	)
	if err != nil {
		ix.log.Warn("Feature counter unavailable", "error", err)
	}
	ix.registered = counter
	return ix
}

// GetID returns the feature's id: the first usable id property, then the
// renderer's own id, then a generated fallback. Empty strings, zero numbers
// and false are not usable. Fallback ids differ between loads of the same
// dataset.
func (ix *Index) GetID(f scene.Feature) string {
	for _, name := range IDProperties {
		v, ok := f.PropertyValue(name)
		if !ok {
			continue
		}
		if s, ok := propertyID(v); ok {
			return s
		}
	}
	if internal, ok := f.(scene.InternalIdentifier); ok {
		if s := internal.InternalID(); s != "" {
			return s
		}
	}
	ix.fallback++
	return ix.fallbackID()
}

func propertyID(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if !rv.Bool() {
			return "", false
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() == 0 {
			return "", false
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() == 0 {
			return "", false
		}
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f == 0 || math.IsNaN(f) {
			return "", false
		}
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	return s, s != ""
}

// Scan walks the loaded part of the tree depth-first and registers every
// feature of every tile that has content.
func (ix *Index) Scan(root scene.Tile) int {
	if root == nil {
		ix.log.Debug("No tileset root available for feature scanning")
		return 0
	}
	added := 0
	var walk func(t scene.Tile)
	walk = func(t scene.Tile) {
		added += ix.register(t)
		for _, child := range t.Children() {
			if child != nil {
				walk(child)
			}
		}
	}
	walk(root)
	ix.log.Debug("Feature scan completed", "added", added, "total", len(ix.features))
	return added
}

// OnTileLoad registers the features of a single newly loaded tile.
// Its subtree is reported by later load events.
func (ix *Index) OnTileLoad(t scene.Tile) {
	if t == nil {
		return
	}
	if n := ix.register(t); n > 0 {
		ix.log.Debug("Tile features indexed", "added", n, "total", len(ix.features))
	}
}

func (ix *Index) register(t scene.Tile) int {
	content := t.Content()
	if content == nil {
		return 0
	}
	added := 0
	for i := 0; i < content.FeatureCount(); i++ {
		f := content.FeatureAt(i)
		if f == nil {
			continue
		}
		id := ix.GetID(f)
		if _, known := ix.features[id]; known {
			continue
		}
		ix.features[id] = f
		ix.order = append(ix.order, id)
		added++
	}
	if added > 0 && ix.registered != nil {
		ix.registered.Add(context.Background(), int64(added))
	}
	return added
}

// Count returns the number of distinct ids.
func (ix *Index) Count() int {
	return len(ix.features)
}

// AllIDs returns the ids in discovery order.
func (ix *Index) AllIDs() []string {
	out := make([]string, len(ix.order))
	copy(out, ix.order)
	return out
}

// Lookup returns the handle registered for id.
func (ix *Index) Lookup(id string) (scene.Feature, bool) {
	f, ok := ix.features[id]
	return f, ok
}

// FallbackCount is how many ids had to be generated since the last reset.
func (ix *Index) FallbackCount() int {
	return ix.fallback
}

// Reset forgets every feature.
func (ix *Index) Reset() {
	ix.features = make(map[string]scene.Feature)
	ix.order = nil
	ix.fallback = 0
}
