package engine

import (
	"fmt"

	"github.com/luneo/canvas-engine/internal/document"
)

// InsertObjects adds an object created by another session, keeping its id.
// objs[0] goes into container at index; for a group root the remaining
// entries are its children, bottom first.
func (e *Engine) InsertObjects(objs []document.Object, container string, index int) error {
	if len(objs) == 0 {
		return fmt.Errorf("%w: nothing to insert", document.ErrInvalidObject)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLocked("Add "+string(objs[0].Type), func(s *document.Scene) ([]string, error) {
		root := objs[0].Clone()
		if root.Type != document.ObjectTypeGroup && len(objs) > 1 {
			return nil, fmt.Errorf("%w: %s cannot own children", document.ErrInvalidObject, root.ID)
		}
		root.Children = nil
		ids := make([]string, 0, len(objs))
		for i, obj := range objs {
			if obj.ID == "" {
				return nil, fmt.Errorf("%w: missing id", document.ErrInvalidObject)
			}
			if _, exists := s.Objects[obj.ID]; exists {
				return nil, fmt.Errorf("%w: duplicate id %s", document.ErrInvalidObject, obj.ID)
			}
			var err error
			if i == 0 {
				err = s.Insert(root, container, index)
			} else {
				err = s.Insert(obj.Clone(), root.ID, -1)
			}
			if err != nil {
				return nil, err
			}
			ids = append(ids, obj.ID)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return ids, nil
	})
}

// ReplaceScene swaps in a whole scene as one undoable step, unlike LoadScene
// which starts a new history.
func (e *Engine) ReplaceScene(next *document.Scene, label string) error {
	if next == nil {
		return fmt.Errorf("%w: nil scene", document.ErrInvalidScene)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	s := next.Clone()
	ids := make([]string, 0, len(s.Objects))
	for id := range s.Objects {
		ids = append(ids, id)
	}
	if err := validateTouched(s, ids); err != nil {
		return err
	}
	e.scene = s
	e.dirty = true
	e.pruneSelectionLocked()
	e.checkpointLocked(label)
	return nil
}
