// Package history is a linear undo/redo stack of labelled snapshots.
package history

import "time"

// DefaultCapacity is the number of entries kept, the base entry included.
const DefaultCapacity = 50

// Cloner is satisfied by snapshot types that can deep-copy themselves.
type Cloner[T any] interface {
	Clone() T
}

// Entry is one checkpoint.
type Entry[T Cloner[T]] struct {
	Label    string
	Snapshot T
	At       time.Time
}

// History keeps the undo stack with the current state on top and a redo
// stack of undone entries. The bottom of the undo stack is the base entry and
// is never popped. Snapshots are cloned on the way in and on the way out so a
// stored entry cannot be changed by later edits to the live value.
//
// History is not safe for concurrent use.
type History[T Cloner[T]] struct {
	undo     []Entry[T]
	redo     []Entry[T]
	capacity int
	now      func() time.Time
}

// New starts a history whose base entry is base.
func New[T Cloner[T]](base T, capacity int) *History[T] {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	h := &History[T]{capacity: capacity, now: time.Now}
	h.undo = []Entry[T]{{Label: "initial", Snapshot: base.Clone(), At: h.now()}}
	return h
}

// Push records snap as the new current state and clears the redo stack.
// When full, the oldest entry is dropped and the next one becomes the base.
func (h *History[T]) Push(label string, snap T) {
	h.undo = append(h.undo, Entry[T]{Label: label, Snapshot: snap.Clone(), At: h.now()})
	if over := len(h.undo) - h.capacity; over > 0 {
		h.undo = append(h.undo[:0:0], h.undo[over:]...)
	}
	h.redo = nil
}

// Undo moves the current entry to the redo stack and returns a copy of the
// state before it. At the base entry it returns false.
func (h *History[T]) Undo() (T, bool) {
	var zero T
	if len(h.undo) <= 1 {
		return zero, false
	}
	top := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, top)
	return h.undo[len(h.undo)-1].Snapshot.Clone(), true
}

// Redo re-applies the most recently undone entry and returns a copy of it.
func (h *History[T]) Redo() (T, bool) {
	var zero T
	if len(h.redo) == 0 {
		return zero, false
	}
	top := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, top)
	return top.Snapshot.Clone(), true
}

func (h *History[T]) CanUndo() bool { return len(h.undo) > 1 }

func (h *History[T]) CanRedo() bool { return len(h.redo) > 0 }

// Clear drops every entry and makes current the new base.
func (h *History[T]) Clear(current T) {
	h.undo = []Entry[T]{{Label: "initial", Snapshot: current.Clone(), At: h.now()}}
	h.redo = nil
}

// Current returns a copy of the state on top of the undo stack.
func (h *History[T]) Current() T {
	return h.undo[len(h.undo)-1].Snapshot.Clone()
}

// UndoLabel names the entry Undo would revert, or "".
func (h *History[T]) UndoLabel() string {
	if !h.CanUndo() {
		return ""
	}
	return h.undo[len(h.undo)-1].Label
}

// RedoLabel names the entry Redo would re-apply, or "".
func (h *History[T]) RedoLabel() string {
	if !h.CanRedo() {
		return ""
	}
	return h.redo[len(h.redo)-1].Label
}

// Len returns the number of entries on the undo stack, base included.
func (h *History[T]) Len() int { return len(h.undo) }

// Labels lists undo stack labels from oldest to newest.
func (h *History[T]) Labels() []string {
	out := make([]string, len(h.undo))
	for i, e := range h.undo {
		out[i] = e.Label
	}
	return out
}
