package engine

import (
	"fmt"
	"slices"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/typeid"
)

type clipEntry struct {
	root     document.Object
	children []document.Object
}

// Select makes id the only selected object.
func (e *Engine) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if _, ok := e.scene.Get(id); !ok {
		return fmt.Errorf("%w: %s", document.ErrObjectNotFound, id)
	}
	e.selection = []string{id}
	return nil
}

// SelectMultiple replaces the selection with ids. Unknown ids are skipped.
func (e *Engine) SelectMultiple(ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	e.selection = e.selection[:0:0]
	for _, id := range ids {
		if _, ok := e.scene.Get(id); ok && !slices.Contains(e.selection, id) {
			e.selection = append(e.selection, id)
		}
	}
	return nil
}

// AddToSelection extends the selection with id.
func (e *Engine) AddToSelection(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if _, ok := e.scene.Get(id); !ok {
		return fmt.Errorf("%w: %s", document.ErrObjectNotFound, id)
	}
	if !slices.Contains(e.selection, id) {
		e.selection = append(e.selection, id)
	}
	return nil
}

func (e *Engine) Deselect(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = slices.DeleteFunc(e.selection, func(s string) bool { return s == id })
}

func (e *Engine) DeselectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = nil
}

func (e *Engine) IsSelected(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Contains(e.selection, id)
}

// Selection returns the selected ids in selection order.
func (e *Engine) Selection() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.selection)
}

// GroupObjects moves the named top-level leaves into a new group placed at
// the top-left of their combined bounds. Children keep their relative
// z-order and are re-expressed relative to the group origin. Ids that are
// unknown, already grouped or groups themselves are ignored.
func (e *Engine) GroupObjects(ids []string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var groupID string
	err := e.commitLocked("Group", func(s *document.Scene) ([]string, error) {
		members := groupable(s, ids)
		if len(members) == 0 {
			return nil, document.ErrNoObjectsToGroup
		}

		var acc geom.Bounds
		top := 0
		for _, m := range members {
			b, _ := s.ObjectBounds(m.id)
			acc.Add(b)
			top = max(top, m.index)
		}
		bounds := acc.Rect()

		group := newObject(document.ObjectTypeGroup, Placement{X: bounds.X, Y: bounds.Y}, bounds.Width, bounds.Height)
		children := make([]document.Object, len(members))
		for i, m := range members {
			s.Detach(m.id)
			child := s.Objects[m.id]
			child.Transform.X -= bounds.X
			child.Transform.Y -= bounds.Y
			children[i] = child
		}
		if err := s.Insert(group, "", top-(len(members)-1)); err != nil {
			return nil, err
		}
		for _, child := range children {
			if err := s.Insert(child, group.ID, -1); err != nil {
				return nil, err
			}
		}
		groupID = group.ID
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	e.selection = []string{groupID}
	return groupID, nil
}

type member struct {
	id    string
	index int
}

// groupable returns the valid top-level leaves among ids, bottom first.
func groupable(s *document.Scene, ids []string) []member {
	var out []member
	for _, id := range ids {
		obj, ok := s.Get(id)
		if !ok || obj.ParentID() != "" || obj.Type == document.ObjectTypeGroup {
			continue
		}
		if slices.ContainsFunc(out, func(m member) bool { return m.id == id }) {
			continue
		}
		_, idx, _ := s.IndexOf(id)
		out = append(out, member{id: id, index: idx})
	}
	slices.SortFunc(out, func(a, b member) int { return a.index - b.index })
	return out
}

// UngroupObjects moves the children of groupID back to the scene root at the
// group's z-position, re-expressed in design space, and destroys the group.
// It returns the child ids.
func (e *Engine) UngroupObjects(groupID string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var childIDs []string
	err := e.commitLocked("Ungroup", func(s *document.Scene) ([]string, error) {
		group, ok := s.Get(groupID)
		if !ok || group.Type != document.ObjectTypeGroup {
			return nil, fmt.Errorf("%w: group %s", document.ErrObjectNotFound, groupID)
		}
		_, idx, _ := s.IndexOf(groupID)
		gt := group.Transform
		translateOnly := gt.Rotation == 0 && gt.ScaleX == 1 && gt.ScaleY == 1

		childIDs = slices.Clone(group.Children)
		children := make([]document.Object, 0, len(childIDs))
		for _, id := range childIDs {
			child := s.Objects[id]
			if translateOnly {
				child.Transform.X += group.Transform.X
				child.Transform.Y += group.Transform.Y
			} else {
				t := child.Transform
				child.Transform = document.Decompose(gt.Matrix().Multiply(t.Matrix()), t.Width, t.Height)
			}
			child.Opacity *= group.Opacity
			children = append(children, child)
		}

		// Detach the children first so removing the shell keeps them.
		grp := s.Objects[groupID]
		grp.Children = nil
		s.Objects[groupID] = grp
		s.Remove(groupID)

		for i, child := range children {
			if err := s.Insert(child, "", idx+i); err != nil {
				return nil, err
			}
		}
		return childIDs, nil
	})
	if err != nil {
		return nil, err
	}
	e.selection = slices.Clone(childIDs)
	return childIDs, nil
}

// DeleteSelected removes every selected object as a single history entry.
func (e *Engine) DeleteSelected() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if len(e.selection) == 0 {
		return nil
	}
	ids := slices.Clone(e.selection)
	err := e.commitLocked("Delete", func(s *document.Scene) ([]string, error) {
		for _, id := range ids {
			s.Remove(id)
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	e.selection = nil
	return nil
}

// Copy puts deep copies of the selected objects on the clipboard and
// returns how many were copied.
func (e *Engine) Copy() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return 0
	}
	e.clipboard = e.clipboard[:0:0]
	e.pastes = 0
	for _, id := range e.selection {
		obj, ok := e.scene.Get(id)
		if !ok {
			continue
		}
		entry := clipEntry{root: obj.Clone()}
		for _, childID := range obj.Children {
			entry.children = append(entry.children, e.scene.Objects[childID].Clone())
		}
		e.clipboard = append(e.clipboard, entry)
	}
	return len(e.clipboard)
}

// Paste inserts copies of the clipboard on top of the scene root, each
// paste offset by a further CloneOffset, and selects them. All pasted
// objects form one history entry.
func (e *Engine) Paste() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(e.clipboard) == 0 {
		return nil, nil
	}
	delta := float64(e.pastes+1) * CloneOffset

	var pasted []string
	err := e.commitLocked("Paste", func(s *document.Scene) ([]string, error) {
		var touched []string
		for _, entry := range e.clipboard {
			root := entry.root.Clone()
			root.ID = typeid.NewObjectID()
			if root.Type == document.ObjectTypeGroup {
				root.ID = typeid.NewGroupID()
			}
			if p := root.ParentID(); p != "" {
				// A grouped child is pasted at its design-space position.
				if _, ok := s.Get(p); ok {
					t := root.Transform
					root.Transform = document.Decompose(s.WorldMatrix(p).Multiply(t.Matrix()), t.Width, t.Height)
				}
			}
			root.Transform.X += delta
			root.Transform.Y += delta
			root.Children = nil
			var children []document.Object
			for _, c := range entry.children {
				c = c.Clone()
				c.ID = typeid.NewObjectID()
				c.Parent = &root.ID
				root.Children = append(root.Children, c.ID)
				children = append(children, c)
			}
			if err := s.Insert(root, "", -1); err != nil {
				return nil, err
			}
			touched = append(touched, root.ID)
			for _, c := range children {
				s.Objects[c.ID] = c
				touched = append(touched, c.ID)
			}
			pasted = append(pasted, root.ID)
		}
		return touched, nil
	})
	if err != nil {
		return nil, err
	}
	e.pastes++
	e.selection = slices.Clone(pasted)
	return pasted, nil
}
