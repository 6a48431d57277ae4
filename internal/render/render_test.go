package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
)

func rect(id string, x, y, w, h float64) document.Object {
	return document.Object{
		ID:        id,
		Type:      document.ObjectTypeShape,
		Transform: document.Transform{X: x, Y: y, Width: w, Height: h, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Visible:   true,
		Shape:     &document.ShapeData{Kind: document.ShapeRect, Fill: "#ff0000"},
	}
}

func ops(cmds []DrawCommand) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Op
	}
	return out
}

func TestBuild_SampleSceneClipsToZone(t *testing.T) {
	s := document.NewSampleScene()
	sg := Build(s)

	cmds := CompileDrawCommands(sg)
	assert.Equal(t, []string{"background", "save", "clip", "text", "restore"}, ops(cmds))
	assert.Equal(t, s.Zones[0].ID, cmds[2].ObjectID)
	assert.Equal(t, "Your text", cmds[3].Text.Content)
}

func TestBuild_GroupComposesTransforms(t *testing.T) {
	s := document.NewScene("scene", 500, 500)
	group := document.Object{
		ID:        "g",
		Type:      document.ObjectTypeGroup,
		Transform: document.Transform{X: 100, Y: 50, Width: 60, Height: 60, ScaleX: 2, ScaleY: 2},
		Opacity:   0.5,
		Visible:   true,
	}
	require.NoError(t, s.Insert(group, "", -1))
	child := rect("a", 10, 10, 20, 20)
	child.Opacity = 0.5
	require.NoError(t, s.Insert(child, "g", -1))

	sg := Build(s)
	node := sg.NodesByID["a"]
	require.NotNil(t, node)

	assert.Equal(t, geom.Rect{X: 120, Y: 70, Width: 40, Height: 40}, node.Bounds)
	assert.InDelta(t, 0.25, node.Opacity, 1e-12)
	assert.Equal(t, node.Bounds, sg.NodesByID["g"].Bounds)

	b, ok := s.ObjectBounds("a")
	require.True(t, ok)
	assert.Equal(t, node.Bounds, b)
}

func TestBuild_HiddenObjectsSkipped(t *testing.T) {
	s := document.NewScene("scene", 100, 100)
	hidden := rect("h", 0, 0, 10, 10)
	hidden.Visible = false
	require.NoError(t, s.Insert(hidden, "", -1))
	require.NoError(t, s.Insert(rect("v", 0, 0, 10, 10), "", -1))

	sg := Build(s)
	assert.Nil(t, sg.NodesByID["h"])
	assert.Len(t, sg.Leaves(), 1)
}

func TestHitTest(t *testing.T) {
	s := document.NewScene("scene", 500, 500)
	require.NoError(t, s.Insert(rect("bottom", 0, 0, 100, 100), "", -1))
	require.NoError(t, s.Insert(rect("top", 50, 50, 100, 100), "", -1))
	rotated := rect("rot", 300, 300, 100, 10)
	rotated.Transform.Rotation = 90
	require.NoError(t, s.Insert(rotated, "", -1))
	require.NoError(t, s.Insert(document.Object{ID: "g", Type: document.ObjectTypeGroup, Visible: true, Opacity: 1,
		Transform: document.Transform{X: 400, Y: 0, ScaleX: 1, ScaleY: 1}}, "", -1))
	require.NoError(t, s.Insert(rect("inner", 0, 0, 20, 20), "g", -1))

	sg := Build(s)
	assert.Equal(t, "top", HitTest(sg, geom.Point{X: 75, Y: 75}))
	assert.Equal(t, "bottom", HitTest(sg, geom.Point{X: 25, Y: 25}))
	assert.Equal(t, "", HitTest(sg, geom.Point{X: 250, Y: 250}))
	assert.Equal(t, "rot", HitTest(sg, geom.Point{X: 295, Y: 350}))
	assert.Equal(t, "", HitTest(sg, geom.Point{X: 350, Y: 305}))
	assert.Equal(t, "g", HitTest(sg, geom.Point{X: 410, Y: 10}))
}

func TestHitTest_RespectsClip(t *testing.T) {
	s := document.NewScene("scene", 500, 500)
	s.Zones = []document.Zone{{ID: "z", Shape: document.ZoneRect, Width: 50, Height: 50, ClipContent: true}}
	obj := rect("a", 0, 0, 100, 100)
	obj.ZoneID = "z"
	require.NoError(t, s.Insert(obj, "", -1))

	sg := Build(s)
	assert.Equal(t, "a", HitTest(sg, geom.Point{X: 25, Y: 25}))
	assert.Equal(t, "", HitTest(sg, geom.Point{X: 75, Y: 75}))
}

func TestCompileArea_FiltersAndTranslates(t *testing.T) {
	s := document.NewScene("scene", 500, 500)
	s.Background = document.Background{}
	require.NoError(t, s.Insert(rect("in", 110, 120, 10, 10), "", -1))
	require.NoError(t, s.Insert(rect("out", 400, 400, 10, 10), "", -1))

	cmds := CompileArea(Build(s), geom.Rect{X: 100, Y: 100, Width: 100, Height: 100})
	require.Len(t, cmds, 1)
	assert.Equal(t, "in", cmds[0].ObjectID)
	x, y := cmds[0].Matrix().TransformPoint(0, 0)
	assert.InDelta(t, 10, x, 1e-9)
	assert.InDelta(t, 20, y, 1e-9)
}

func TestSelectionBounds(t *testing.T) {
	s := document.NewScene("scene", 500, 500)
	require.NoError(t, s.Insert(rect("a", 0, 0, 50, 50), "", -1))
	require.NoError(t, s.Insert(rect("b", 100, 100, 50, 50), "", -1))

	sg := Build(s)
	assert.Equal(t, geom.Rect{Width: 150, Height: 150}, SelectionBounds(sg, []string{"a", "b", "missing"}))
	assert.Equal(t, geom.Rect{}, SelectionBounds(sg, nil))
}

func TestPathCommand_JSON(t *testing.T) {
	path := []PathCommand{MoveTo(1, 2), CubicTo(1, 2, 3, 4, 5, 6), ClosePath()}

	data, err := json.Marshal(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[["M",1,2],["C",1,2,3,4,5,6],["Z"]]`, string(data))

	var back []PathCommand
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "C", back[1].Op)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, back[1].Args)
}

func TestShapePaths(t *testing.T) {
	star := ShapePath(&document.ShapeData{Kind: document.ShapeStar, NumPoints: 5, InnerRadius: 20, OuterRadius: 40}, 80, 80)
	assert.Len(t, star, 11)
	assert.InDelta(t, 40, star[0].Args[0], 1e-9)
	assert.InDelta(t, 0, star[0].Args[1], 1e-9)

	hex := ShapePath(&document.ShapeData{Kind: document.ShapePolygon}, 100, 100)
	assert.Len(t, hex, 7)

	rounded := RectPath(100, 50, 10)
	assert.Equal(t, "M", rounded[0].Op)
	assert.Equal(t, []float64{10, 0}, rounded[0].Args)

	line := LinePath([]geom.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 0}}, 0.5)
	require.Len(t, line, 3)
	assert.Equal(t, "C", line[1].Op)
	assert.Equal(t, []float64{20, 0}, line[2].Args[4:])
}

func TestZonePath_OffsetsRect(t *testing.T) {
	p := ZonePath(document.Zone{Shape: document.ZoneRect, X: 5, Y: 7, Width: 10, Height: 10})
	assert.Equal(t, []float64{5, 7}, p[0].Args)
	assert.Equal(t, []float64{15, 17}, p[2].Args)
}
