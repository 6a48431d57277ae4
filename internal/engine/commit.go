package engine

import (
	"slices"

	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/zone"
)

// mutation edits a working copy of the scene and returns the ids whose
// placement must be validated against their zones.
type mutation func(s *document.Scene) ([]string, error)

// commitLocked applies fn to a copy of the scene. If fn fails or any touched
// object violates its zone, the live scene is left as it was. Otherwise the
// copy becomes live and a checkpoint is recorded.
func (e *Engine) commitLocked(label string, fn mutation) error {
	if err := e.ready(); err != nil {
		return err
	}
	next := e.scene.Clone()
	touched, err := fn(next)
	if err != nil {
		return err
	}
	if err := validateTouched(next, touched); err != nil {
		e.logger.Debug("mutation rejected", zap.String("label", label), zap.Error(err))
		return err
	}
	e.scene = next
	e.dirty = true
	e.pruneSelectionLocked()
	e.checkpointLocked(label)
	e.logger.Debug("scene mutated", zap.String("label", label), zap.Strings("ids", touched))
	return nil
}

func validateTouched(s *document.Scene, ids []string) error {
	var violations []zone.Violation
	for _, id := range ids {
		obj, ok := s.Get(id)
		if !ok || obj.ZoneID == "" {
			continue
		}
		var err error
		if z, ok := s.Zone(obj.ZoneID); ok {
			err = zone.ValidatePlacement(s, z, obj)
		} else {
			err = zone.MissingZone(obj.ZoneID, id)
		}
		violations = append(violations, zone.Violations(err)...)
	}
	if len(violations) > 0 {
		return &zone.ValidationError{Violations: violations}
	}
	return nil
}

func (e *Engine) checkpointLocked(label string) {
	if e.batching {
		e.batchDirty = true
		return
	}
	e.history.Push(label, e.scene)
}

func (e *Engine) pruneSelectionLocked() {
	e.selection = slices.DeleteFunc(e.selection, func(id string) bool {
		_, ok := e.scene.Get(id)
		return !ok
	})
}

// Batch runs fn and records everything it changes as one history entry.
// If fn returns an error the scene is restored to its state before the
// batch. Nested batches join the outer one.
func (e *Engine) Batch(label string, fn func() error) error {
	e.mu.Lock()
	if err := e.ready(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.batching {
		e.mu.Unlock()
		return fn()
	}
	before := e.scene.Clone()
	e.batching, e.batchDirty = true, false
	e.mu.Unlock()

	err := fn()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.batching = false
	if e.scene == nil {
		return err
	}
	if err != nil {
		e.scene = before
		e.dirty = true
		e.pruneSelectionLocked()
		return err
	}
	if e.batchDirty {
		e.history.Push(label, e.scene)
	}
	return nil
}

// Undo restores the state before the last checkpoint. At the initial state
// it does nothing and returns false.
func (e *Engine) Undo() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return false, err
	}
	snap, ok := e.history.Undo()
	if !ok {
		return false, nil
	}
	e.restoreLocked(snap)
	return true, nil
}

// Redo re-applies the last undone checkpoint.
func (e *Engine) Redo() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return false, err
	}
	snap, ok := e.history.Redo()
	if !ok {
		return false, nil
	}
	e.restoreLocked(snap)
	return true, nil
}

func (e *Engine) restoreLocked(snap *document.Scene) {
	e.scene = snap
	e.dirty = true
	e.pruneSelectionLocked()
}

func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history != nil && e.history.CanUndo()
}

func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history != nil && e.history.CanRedo()
}

// ClearHistory makes the live scene the new initial state.
func (e *Engine) ClearHistory() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	e.history.Clear(e.scene)
	return nil
}

// HistoryState describes the undo stack for a host's undo menu.
type HistoryState struct {
	Labels    []string `json:"labels"`
	CanUndo   bool     `json:"canUndo"`
	CanRedo   bool     `json:"canRedo"`
	UndoLabel string   `json:"undoLabel,omitempty"`
	RedoLabel string   `json:"redoLabel,omitempty"`
}

func (e *Engine) History() HistoryState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.history == nil {
		return HistoryState{}
	}
	return HistoryState{
		Labels:    e.history.Labels(),
		CanUndo:   e.history.CanUndo(),
		CanRedo:   e.history.CanRedo(),
		UndoLabel: e.history.UndoLabel(),
		RedoLabel: e.history.RedoLabel(),
	}
}

// HistoryLabels lists checkpoint labels from oldest to newest.
func (e *Engine) HistoryLabels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.history == nil {
		return nil
	}
	return e.history.Labels()
}
