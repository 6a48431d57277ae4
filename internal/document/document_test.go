package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luneo/canvas-engine/internal/geom"
)

func leaf(id string) Object {
	return Object{
		ID:        id,
		Type:      ObjectTypeShape,
		Transform: Transform{Width: 10, Height: 10, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Visible:   true,
		Shape:     &ShapeData{Kind: ShapeRect, Fill: "#fff"},
	}
}

func TestScene_InsertOrderAndMove(t *testing.T) {
	s := NewScene("scene_test", 100, 100)
	require.NoError(t, s.Insert(leaf("a"), "", -1))
	require.NoError(t, s.Insert(leaf("b"), "", -1))
	require.NoError(t, s.Insert(leaf("c"), "", 0))

	assert.Equal(t, []string{"c", "a", "b"}, s.Children)

	require.True(t, s.Move("c", 99))
	assert.Equal(t, []string{"a", "b", "c"}, s.Children)

	require.True(t, s.Move("b", 0))
	assert.Equal(t, []string{"b", "a", "c"}, s.Children)

	assert.False(t, s.Move("missing", 0))
}

func TestScene_RemoveCascades(t *testing.T) {
	s := NewScene("scene_test", 100, 100)
	group := Object{ID: "g", Type: ObjectTypeGroup, Children: []string{}, Visible: true, Opacity: 1}
	require.NoError(t, s.Insert(group, "", -1))
	require.NoError(t, s.Insert(leaf("a"), "g", -1))
	require.NoError(t, s.Insert(leaf("b"), "g", -1))
	require.NoError(t, s.Validate())

	assert.True(t, s.Remove("g"))
	assert.Empty(t, s.Objects)
	assert.Empty(t, s.Children)
	assert.False(t, s.Remove("g"))
}

func TestScene_InsertIntoLeafFails(t *testing.T) {
	s := NewScene("scene_test", 100, 100)
	require.NoError(t, s.Insert(leaf("a"), "", -1))

	err := s.Insert(leaf("b"), "a", -1)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestScene_ValidateDetectsDoubleOwnership(t *testing.T) {
	s := NewScene("scene_test", 100, 100)
	require.NoError(t, s.Insert(Object{ID: "g", Type: ObjectTypeGroup, Children: []string{}}, "", -1))
	require.NoError(t, s.Insert(leaf("a"), "g", -1))
	s.Children = append(s.Children, "a")

	assert.ErrorIs(t, s.Validate(), ErrInvalidScene)
}

func TestScene_CloneIsIndependent(t *testing.T) {
	s := NewSampleScene()
	snap := s.Clone()

	id := s.Children[0]
	obj := s.Objects[id]
	obj.Text.Content = "changed"
	obj.Transform.X = 999
	s.Objects[id] = obj
	s.Zones[0].Constraints.AllowedTypes[0] = ObjectTypeGroup
	s.Children = append(s.Children, "x")

	assert.Equal(t, "Your text", snap.Objects[id].Text.Content)
	assert.Equal(t, 200.0, snap.Objects[id].Transform.X)
	assert.Equal(t, ObjectTypeText, snap.Zones[0].Constraints.AllowedTypes[0])
	assert.Len(t, snap.Children, 1)
}

func TestScene_JSONRoundTrip(t *testing.T) {
	s := NewSampleScene()
	require.NoError(t, s.Insert(Object{
		ID:        "path1",
		Type:      ObjectTypePath,
		Transform: Transform{X: 5, Y: 6, Width: 20, Height: 10, Rotation: 12.5, ScaleX: 1, ScaleY: 1},
		Opacity:   0.5,
		Visible:   true,
		Path: &PathData{
			Points: []geom.Point{{X: 0, Y: 0}, {X: 20, Y: 10}},
			Stroke: "#000000", StrokeWidth: 2, LineCap: "round", LineJoin: "round",
		},
	}, "", -1))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back Scene
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, &back)
	assert.NoError(t, back.Validate())
}

func TestPatch_Apply(t *testing.T) {
	obj := Object{
		ID:        "t",
		Type:      ObjectTypeText,
		Transform: Transform{X: 1, Y: 2, Width: 10, Height: 10, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Text:      &TextData{Content: "a", FontSize: 12, Fill: "#000"},
	}

	out, err := Patch{X: Ptr(50.0), Opacity: Ptr(3.0), Text: &TextPatch{Content: Ptr("b")}}.Apply(obj)
	require.NoError(t, err)

	assert.Equal(t, 50.0, out.Transform.X)
	assert.Equal(t, 2.0, out.Transform.Y)
	assert.Equal(t, 1.0, out.Opacity)
	assert.Equal(t, "b", out.Text.Content)
	assert.Equal(t, 12.0, out.Text.FontSize)
	assert.Equal(t, "a", obj.Text.Content, "input must not be mutated")

	_, err = Patch{Shape: &ShapePatch{Fill: Ptr("#f00")}}.Apply(obj)
	assert.ErrorIs(t, err, ErrInvalidPatch)
}

func TestZone_BoundsAndRotation(t *testing.T) {
	circle := Zone{Shape: ZoneCircle, CenterX: 50, CenterY: 50, Radius: 50}
	assert.Equal(t, geom.Rect{X: 0, Y: 0, Width: 100, Height: 100}, circle.Bounds())

	rect := Zone{Shape: ZoneRect, X: 0, Y: 0, Width: 100, Height: 20, Rotation: 90}
	rb := rect.RotatedBounds()
	assert.InDelta(t, 40, rb.X, 1e-9)
	assert.InDelta(t, -40, rb.Y, 1e-9)
	assert.InDelta(t, 20, rb.Width, 1e-9)
	assert.InDelta(t, 100, rb.Height, 1e-9)

	var nilCons *Constraints
	assert.True(t, nilCons.RotationAllowed())
	assert.False(t, (&Constraints{AllowRotation: Ptr(false)}).RotationAllowed())
}
