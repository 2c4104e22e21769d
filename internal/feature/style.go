package feature

import (
	"errors"

	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/scene"
)

var (
	// ErrUnknownFeature is returned for ids the index has not seen.
	ErrUnknownFeature = errors.New("unknown feature id")
	// ErrNotColorable is returned when the handle does not expose a color.
	ErrNotColorable = errors.New("feature color cannot be changed")
)

// CatalogEntry is one row of the model catalog shown to the operator.
// Opacity is a transparency percentage: 0 is fully opaque, 100 invisible.
type CatalogEntry struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Visible bool    `json:"visible"`
	Opacity float64 `json:"opacity"`
}

// BatchResult counts the outcome of an operation over many features.
type BatchResult struct {
	Succeeded int
	Failed    int
}

// OK reports whether every feature was updated.
func (r BatchResult) OK() bool {
	return r.Failed == 0
}

// Catalog lists every indexed feature as visible and opaque.
func (ix *Index) Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, CatalogEntry{ID: id, Name: id, Visible: true})
	}
	return out
}

func (ix *Index) colorable(id string) (scene.Colorable, error) {
	f, ok := ix.features[id]
	if !ok {
		return nil, ErrUnknownFeature
	}
	c, ok := f.(scene.Colorable)
	if !ok {
		return nil, ErrNotColorable
	}
	return c, nil
}

func alphaFor(opacityPct float64) float64 {
	return 1 - opacityPct/100
}

// SetVisible shows a feature at its transparency or hides it fully.
func (ix *Index) SetVisible(id string, visible bool, opacityPct float64) error {
	c, err := ix.colorable(id)
	if err != nil {
		ix.log.Debug("Cannot toggle feature visibility", "id", id, "error", err)
		return err
	}
	alpha := 0.0
	if visible {
		alpha = alphaFor(opacityPct)
	}
	c.SetColor(c.Color().WithAlpha(alpha))
	return nil
}

// UpdateOpacity combines a feature's transparency with the global one.
func (ix *Index) UpdateOpacity(id string, opacityPct, globalPct float64) error {
	c, err := ix.colorable(id)
	if err != nil {
		return err
	}
	c.SetColor(c.Color().WithAlpha(alphaFor(opacityPct) * alphaFor(globalPct)))
	return nil
}

// Highlight paints a feature yellow and returns a function that restores
// its previous color. Timing the restore is up to the caller.
func (ix *Index) Highlight(id string, opacityPct float64) (func(), error) {
	c, err := ix.colorable(id)
	if err != nil {
		return func() {}, err
	}
	prev := c.Color()
	c.SetColor(core.ColorYellow.WithAlpha(alphaFor(opacityPct)))
	return func() { c.SetColor(prev) }, nil
}

// ResetAllOpacity reapplies opacity to every visible catalog entry.
func (ix *Index) ResetAllOpacity(entries []CatalogEntry, globalPct float64) BatchResult {
	var res BatchResult
	for _, e := range entries {
		if !e.Visible {
			continue
		}
		if err := ix.UpdateOpacity(e.ID, e.Opacity, globalPct); err != nil {
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	return res
}

// ShowAll makes every hidden entry visible, updating entries in place.
func (ix *Index) ShowAll(entries []CatalogEntry) BatchResult {
	return ix.setAll(entries, true)
}

// HideAll hides every visible entry, updating entries in place.
func (ix *Index) HideAll(entries []CatalogEntry) BatchResult {
	return ix.setAll(entries, false)
}

func (ix *Index) setAll(entries []CatalogEntry, visible bool) BatchResult {
	var res BatchResult
	for i := range entries {
		if entries[i].Visible == visible {
			continue
		}
		entries[i].Visible = visible
		if err := ix.SetVisible(entries[i].ID, visible, entries[i].Opacity); err != nil {
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	return res
}
