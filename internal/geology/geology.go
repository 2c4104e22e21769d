// Package geology computes reserve and stratigraphy figures for the orebodies
// and boreholes shown next to a tileset.
package geology

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// DefaultDensity is the ore density in t/m³ used when none is given.
const DefaultDensity = 2.5

// Layer is one stratigraphic interval of a borehole.
type Layer struct {
	Depth     float64 `json:"depth"`
	Lithology string  `json:"lithology"`
	Thickness float64 `json:"thickness"`
}

type Borehole struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Z            float64 `json:"z"`
	Depth        float64 `json:"depth"`
	Stratigraphy []Layer `json:"stratigraphy"`
}

// Box is an axis-aligned extent in local meters.
type Box struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MinZ float64 `json:"minZ"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
	MaxZ float64 `json:"maxZ"`
}

type Orebody struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Grade       float64 `json:"grade"` // percent
	BoundingBox *Box    `json:"boundingBox,omitempty"`
}

// Reserve is the estimate for one orebody. Weight and MetalContent are in
// tonnes.
type Reserve struct {
	Volume       float64 `json:"volume"`
	Weight       float64 `json:"weight"`
	Grade        float64 `json:"grade"`
	MetalContent float64 `json:"metalContent"`
}

// LithologyStats aggregates the layers of one lithology across boreholes.
type LithologyStats struct {
	Lithology        string  `json:"lithology"`
	Count            int     `json:"count"`
	TotalThickness   float64 `json:"totalThickness"`
	AverageThickness float64 `json:"averageThickness"`
}

// Volume returns the bounding box volume, zero for an inverted box.
func (b Box) Volume() float64 {
	dx, dy, dz := b.MaxX-b.MinX, b.MaxY-b.MinY, b.MaxZ-b.MinZ
	if dx < 0 || dy < 0 || dz < 0 {
		return 0
	}
	return dx * dy * dz
}

// OrebodyVolume approximates the orebody by its bounding box. An orebody
// without one has no volume.
func OrebodyVolume(o Orebody) float64 {
	if o.BoundingBox == nil {
		return 0
	}
	return o.BoundingBox.Volume()
}

// OreReserve estimates tonnage and contained metal. A non-positive density
// falls back to DefaultDensity.
func OreReserve(o Orebody, density float64) Reserve {
	if density <= 0 {
		density = DefaultDensity
	}
	volume := OrebodyVolume(o)
	weight := volume * density
	return Reserve{
		Volume:       volume,
		Weight:       weight,
		Grade:        o.Grade,
		MetalContent: weight * o.Grade / 100,
	}
}

// StratigraphyStats groups all layers by lithology, sorted by name. Layers
// without a lithology are counted as "unknown".
func StratigraphyStats(boreholes []Borehole) []LithologyStats {
	byName := make(map[string]*LithologyStats)
	for _, bh := range boreholes {
		for _, l := range bh.Stratigraphy {
			name := strings.TrimSpace(l.Lithology)
			if name == "" {
				name = "unknown"
			}
			s, ok := byName[name]
			if !ok {
				s = &LithologyStats{Lithology: name}
				byName[name] = s
			}
			s.Count++
			s.TotalThickness += l.Thickness
		}
	}

	out := make([]LithologyStats, 0, len(byName))
	for _, s := range byName {
		s.AverageThickness = s.TotalThickness / float64(s.Count)
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b LithologyStats) int { return strings.Compare(a.Lithology, b.Lithology) })
	return out
}

// Report summarizes a geology model.
type Report struct {
	Boreholes    int                `json:"boreholes"`
	Orebodies    int                `json:"orebodies"`
	TotalMetres  float64            `json:"totalMetres"`
	Reserves     map[string]Reserve `json:"reserves"`
	Stratigraphy []LithologyStats   `json:"stratigraphy"`
}

// Model is the JSON document holding boreholes and orebodies.
type Model struct {
	Boreholes []Borehole `json:"boreholes"`
	Orebodies []Orebody  `json:"orebodies"`
}

// Load decodes a model. Orebodies without an id are keyed by their index.
func Load(r io.Reader) (Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return Model{}, fmt.Errorf("invalid geology model: %w", err)
	}
	for i := range m.Orebodies {
		if m.Orebodies[i].ID == "" {
			m.Orebodies[i].ID = fmt.Sprintf("orebody-%d", i+1)
		}
	}
	return m, nil
}

// Report computes reserves at density and the stratigraphy of all boreholes.
func (m Model) Report(density float64) Report {
	r := Report{
		Boreholes:    len(m.Boreholes),
		Orebodies:    len(m.Orebodies),
		Reserves:     make(map[string]Reserve, len(m.Orebodies)),
		Stratigraphy: StratigraphyStats(m.Boreholes),
	}
	for _, bh := range m.Boreholes {
		r.TotalMetres += bh.Depth
	}
	for _, o := range m.Orebodies {
		r.Reserves[o.ID] = OreReserve(o, density)
	}
	return r
}
