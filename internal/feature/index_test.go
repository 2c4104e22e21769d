package feature

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeature struct {
	props    map[string]any
	internal string
	color    core.Color
}

func (f *fakeFeature) PropertyValue(name string) (any, bool) {
	v, ok := f.props[name]
	return v, ok
}

func (f *fakeFeature) Color() core.Color     { return f.color }
func (f *fakeFeature) SetColor(c core.Color) { f.color = c }

type internalFeature struct {
	fakeFeature
}

func (f *internalFeature) InternalID() string { return f.internal }

// plainFeature exposes properties only, no color.
type plainFeature struct {
	props map[string]any
}

func (f plainFeature) PropertyValue(name string) (any, bool) {
	v, ok := f.props[name]
	return v, ok
}

type fakeContent struct {
	features []scene.Feature
}

func (c *fakeContent) FeatureCount() int             { return len(c.features) }
func (c *fakeContent) FeatureAt(i int) scene.Feature { return c.features[i] }

type fakeTile struct {
	content  *fakeContent
	children []*fakeTile
}

func (t *fakeTile) Content() scene.Content {
	if t.content == nil {
		return nil
	}
	return t.content
}

func (t *fakeTile) Children() []scene.Tile {
	out := make([]scene.Tile, len(t.children))
	for i, c := range t.children {
		out[i] = c
	}
	return out
}

func feat(props map[string]any) *fakeFeature {
	return &fakeFeature{props: props, color: core.ColorWhite}
}

func tileWithIDs(ids ...string) *fakeTile {
	c := &fakeContent{}
	for _, id := range ids {
		c.features = append(c.features, feat(map[string]any{"id": id}))
	}
	return &fakeTile{content: c}
}

func sequentialIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("generated_%d", n)
	}
}

func TestGetID_PriorityOrder(t *testing.T) {
	ix := NewIndex(nil)

	assert.Equal(t, "A", ix.GetID(feat(map[string]any{"id": "A", "name": "B"})))
	assert.Equal(t, "B", ix.GetID(feat(map[string]any{"name": "B", "description": "C"})))
	assert.Equal(t, "G", ix.GetID(feat(map[string]any{"GUID": "G", "guid": "g"})))
	assert.Equal(t, "C", ix.GetID(feat(map[string]any{"description": "C"})))
	assert.Equal(t, "42", ix.GetID(feat(map[string]any{"ID": 42})))
}

func TestGetID_SkipsEmptyValues(t *testing.T) {
	ix := NewIndex(nil)

	assert.Equal(t, "B", ix.GetID(feat(map[string]any{"id": "", "ID": nil, "name": "B"})))
	assert.Equal(t, "C", ix.GetID(feat(map[string]any{"id": "   ", "Name": "C"})))
}

func TestGetID_SkipsFalsyValues(t *testing.T) {
	ix := NewIndex(nil)

	assert.Equal(t, "B", ix.GetID(feat(map[string]any{"id": 0, "ID": false, "name": "B"})))
	assert.Equal(t, "B", ix.GetID(feat(map[string]any{"id": 0.0, "ID": int64(0), "name": "B"})))
	assert.Equal(t, "42", ix.GetID(feat(map[string]any{"id": 42, "name": "B"})))
	assert.Equal(t, "true", ix.GetID(feat(map[string]any{"id": true, "name": "B"})))
}

func TestGetID_Deterministic(t *testing.T) {
	ix := NewIndex(nil)
	f := feat(map[string]any{"Name": "orebody-7"})

	assert.Equal(t, ix.GetID(f), ix.GetID(f))
	assert.Equal(t, 0, ix.FallbackCount())
}

func TestGetID_InternalIDBeforeFallback(t *testing.T) {
	ix := NewIndex(nil, WithFallbackID(sequentialIDs()))
	f := &internalFeature{fakeFeature: fakeFeature{internal: "tile3#17"}}

	assert.Equal(t, "tile3#17", ix.GetID(f))
	assert.Equal(t, 0, ix.FallbackCount())
}

func TestGetID_Fallback(t *testing.T) {
	ix := NewIndex(nil, WithFallbackID(sequentialIDs()))

	assert.Equal(t, "generated_1", ix.GetID(feat(nil)))
	assert.Equal(t, "generated_2", ix.GetID(plainFeature{}))
	assert.Equal(t, 2, ix.FallbackCount())
}

func TestGetID_DefaultFallbackIsUnique(t *testing.T) {
	ix := NewIndex(nil)

	a := ix.GetID(feat(nil))
	b := ix.GetID(feat(nil))

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "feature_")
}

func TestScan_DepthFirst(t *testing.T) {
	root := tileWithIDs("root")
	left := tileWithIDs("l1", "l2")
	right := &fakeTile{} // not loaded yet
	left.children = []*fakeTile{tileWithIDs("ll")}
	root.children = []*fakeTile{left, right}

	ix := NewIndex(nil)
	added := ix.Scan(root)

	assert.Equal(t, 4, added)
	assert.Equal(t, 4, ix.Count())
	assert.Equal(t, []string{"root", "l1", "l2", "ll"}, ix.AllIDs())
}

func TestScan_NilRoot(t *testing.T) {
	ix := NewIndex(nil)
	assert.Equal(t, 0, ix.Scan(nil))
	assert.Equal(t, 0, ix.Count())
}

func TestFirstWriterWins(t *testing.T) {
	first := tileWithIDs("shared")
	second := tileWithIDs("shared")

	ix := NewIndex(nil)
	ix.OnTileLoad(first)
	ix.OnTileLoad(second)

	assert.Equal(t, 1, ix.Count())
	got, ok := ix.Lookup("shared")
	require.True(t, ok)
	assert.Same(t, first.content.features[0], got)
}

func TestOnTileLoad_DoesNotWalkChildren(t *testing.T) {
	parent := tileWithIDs("p")
	parent.children = []*fakeTile{tileWithIDs("c")}

	ix := NewIndex(nil)
	ix.OnTileLoad(parent)

	assert.Equal(t, []string{"p"}, ix.AllIDs())

	ix.OnTileLoad(parent.children[0])
	assert.Equal(t, []string{"p", "c"}, ix.AllIDs())
}

func TestOnTileLoad_EmptyTile(t *testing.T) {
	ix := NewIndex(nil)
	ix.OnTileLoad(&fakeTile{})
	ix.OnTileLoad(nil)
	assert.Equal(t, 0, ix.Count())
}

func TestScanAndIncrementalConverge(t *testing.T) {
	// a tree where ids repeat across tiles, as LOD levels often do
	tiles := []*fakeTile{
		tileWithIDs("a", "b"),
		tileWithIDs("b", "c"),
		tileWithIDs("c", "d", "e"),
		tileWithIDs("a", "e", "f"),
		tileWithIDs("g"),
	}
	distinct := 7

	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 20; run++ {
		order := rng.Perm(len(tiles))
		split := rng.Intn(len(tiles) + 1)

		// the first tiles are resident at scan time, the rest stream in later
		root := &fakeTile{}
		for _, i := range order[:split] {
			root.children = append(root.children, tiles[i])
		}

		ix := NewIndex(nil)
		ix.Scan(root)
		for _, i := range order[split:] {
			ix.OnTileLoad(tiles[i])
		}

		assert.Equal(t, distinct, ix.Count(), "order %v split %d", order, split)
	}
}

func TestLookup_Unknown(t *testing.T) {
	ix := NewIndex(nil)
	_, ok := ix.Lookup("missing")
	assert.False(t, ok)
}

func TestAllIDs_ReturnsCopy(t *testing.T) {
	ix := NewIndex(nil)
	ix.OnTileLoad(tileWithIDs("a"))

	ids := ix.AllIDs()
	ids[0] = "mutated"

	assert.Equal(t, []string{"a"}, ix.AllIDs())
}

func TestReset(t *testing.T) {
	ix := NewIndex(nil, WithFallbackID(sequentialIDs()))
	ix.OnTileLoad(tileWithIDs("a", "b"))
	ix.GetID(feat(nil))

	ix.Reset()

	assert.Equal(t, 0, ix.Count())
	assert.Empty(t, ix.AllIDs())
	assert.Equal(t, 0, ix.FallbackCount())
}
