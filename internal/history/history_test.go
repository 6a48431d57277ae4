package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luneo/canvas-engine/internal/document"
)

type counter struct {
	values []int
}

func (c *counter) Clone() *counter {
	return &counter{values: append([]int(nil), c.values...)}
}

func TestHistory_UndoRedoInverse(t *testing.T) {
	live := &counter{}
	h := New(live, 0)
	require.False(t, h.CanUndo())

	var states []*counter
	for i := range 5 {
		live.values = append(live.values, i)
		h.Push(fmt.Sprintf("add %d", i), live)
		states = append(states, live.Clone())
	}
	final := live.Clone()

	for range 5 {
		var ok bool
		live, ok = h.Undo()
		require.True(t, ok)
	}
	assert.Empty(t, live.values)
	_, ok := h.Undo()
	assert.False(t, ok, "base entry cannot be popped")

	for i := range 5 {
		live, ok = h.Redo()
		require.True(t, ok)
		assert.Equal(t, states[i], live)
	}
	assert.Equal(t, final, live)
	_, ok = h.Redo()
	assert.False(t, ok)
}

func TestHistory_PushClearsRedo(t *testing.T) {
	h := New(&counter{}, 0)
	h.Push("a", &counter{values: []int{1}})
	h.Push("b", &counter{values: []int{1, 2}})

	_, ok := h.Undo()
	require.True(t, ok)
	require.True(t, h.CanRedo())
	assert.Equal(t, "b", h.RedoLabel())

	h.Push("c", &counter{values: []int{1, 3}})
	assert.False(t, h.CanRedo())
	assert.Equal(t, []string{"initial", "a", "c"}, h.Labels())
}

func TestHistory_SnapshotsAreImmutable(t *testing.T) {
	live := document.NewSampleScene()
	h := New(live, 0)

	id := live.Children[0]
	obj := live.Objects[id]
	obj.Text.Content = "edited"
	live.Objects[id] = obj
	h.Push("edit", live)

	obj = live.Objects[id]
	obj.Text.Content = "edited again without checkpoint"
	live.Objects[id] = obj

	assert.Equal(t, "edited", h.Current().Objects[id].Text.Content)

	prev, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, "Your text", prev.Objects[id].Text.Content)

	prevObj := prev.Objects[id]
	prevObj.Text.Content = "mutating the returned copy"
	prev.Objects[id] = prevObj
	assert.Equal(t, "Your text", h.Current().Objects[id].Text.Content)
}

func TestHistory_CapacityDropsOldest(t *testing.T) {
	h := New(&counter{}, 3)
	for i := range 5 {
		h.Push(fmt.Sprintf("p%d", i), &counter{values: []int{i}})
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"p2", "p3", "p4"}, h.Labels())

	_, ok := h.Undo()
	require.True(t, ok)
	base, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, []int{2}, base.values)
	assert.False(t, h.CanUndo())
}

func TestHistory_Clear(t *testing.T) {
	h := New(&counter{}, 0)
	h.Push("a", &counter{values: []int{1}})
	h.Undo()

	h.Clear(&counter{values: []int{9}})

	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	assert.Equal(t, []int{9}, h.Current().values)
	assert.Equal(t, "", h.UndoLabel())
}
