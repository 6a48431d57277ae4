package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luneo/canvas-engine/internal/document"
)

func leafObject(id string) document.Object {
	return document.Object{
		ID:        id,
		Type:      document.ObjectTypeShape,
		Transform: document.Transform{Width: 20, Height: 20, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Visible:   true,
		Shape:     &document.ShapeData{Kind: document.ShapeRect, Fill: "#000000"},
	}
}

func TestEngine_InsertObjects(t *testing.T) {
	e := newEngine(t, document.NewScene("scene_remote", 400, 400))

	group := document.Object{
		ID:        "grp_remote",
		Type:      document.ObjectTypeGroup,
		Transform: document.Transform{X: 50, Y: 50, Width: 40, Height: 20, ScaleX: 1, ScaleY: 1},
		Opacity:   1,
		Visible:   true,
		Children:  []string{"stale"},
	}
	require.NoError(t, e.InsertObjects([]document.Object{group, leafObject("obj_a"), leafObject("obj_b")}, "", -1))

	got, ok := e.GetObject("grp_remote")
	require.True(t, ok)
	assert.Equal(t, []string{"obj_a", "obj_b"}, got.Children)
	child, ok := e.GetObject("obj_b")
	require.True(t, ok)
	assert.Equal(t, "grp_remote", child.ParentID())
	assert.Equal(t, []string{"Add group"}, e.HistoryLabels()[1:])

	err := e.InsertObjects([]document.Object{leafObject("obj_a")}, "", -1)
	assert.ErrorIs(t, err, document.ErrInvalidObject)
	err = e.InsertObjects([]document.Object{leafObject("obj_c"), leafObject("obj_d")}, "", -1)
	assert.ErrorIs(t, err, document.ErrInvalidObject)
	err = e.InsertObjects(nil, "", -1)
	assert.ErrorIs(t, err, document.ErrInvalidObject)
	_, ok = e.GetObject("obj_c")
	assert.False(t, ok, "rejected inserts leave the scene untouched")
}

func TestEngine_ReplaceScene(t *testing.T) {
	e := newEngine(t, document.NewScene("scene_remote", 400, 400))

	next := document.NewScene("scene_remote", 400, 400)
	require.NoError(t, next.Insert(leafObject("obj_a"), "", -1))
	require.NoError(t, e.ReplaceScene(next, "Group"))
	assert.Len(t, e.GetAllObjects(), 1)

	next.Objects["obj_a"] = leafObject("changed")
	obj, _ := e.GetObject("obj_a")
	assert.Equal(t, "obj_a", obj.ID, "the engine keeps its own copy")

	undone, err := e.Undo()
	require.NoError(t, err)
	assert.True(t, undone)
	assert.Empty(t, e.GetAllObjects())

	broken := document.NewScene("scene_remote", 400, 400)
	broken.Children = []string{"ghost"}
	assert.ErrorIs(t, e.ReplaceScene(broken, "Edit"), document.ErrInvalidScene)
	assert.ErrorIs(t, New().ReplaceScene(next, "Edit"), document.ErrEngineNotInitialized)
}
