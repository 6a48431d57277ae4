package collab

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/engine"
)

var (
	ErrUnknownOperation = errors.New("unknown operation type")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNothingToRedo    = errors.New("nothing to redo")
)

// Room is one shared design. Its engine is the authoritative scene: every
// operation is validated against the zones there before it is broadcast.
type Room struct {
	designID string
	clients  map[string]*Client // clientID -> client; guarded by Hub.mu
	presence *PresenceManager
	ready    bool // engine loaded; guarded by Hub.mu

	mu        sync.Mutex
	engine    *engine.Engine
	serverSeq int64
	dirty     bool
}

// NewRoom returns a room around e. A nil engine marks a room still loading.
func NewRoom(designID string, e *engine.Engine) *Room {
	return &Room{
		designID: designID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		ready:    e != nil,
		engine:   e,
	}
}

// Apply runs op on the room's scene and returns its server sequence number.
func (r *Room) Apply(op Operation) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := applyOperation(r.engine, op); err != nil {
		return 0, err
	}
	r.serverSeq++
	r.dirty = true
	return r.serverSeq, nil
}

// Sync returns the current scene and sequence number.
func (r *Room) Sync() (SyncPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.engine.Snapshot()
	if err != nil {
		return SyncPayload{}, err
	}
	return SyncPayload{Scene: s, ServerSeq: r.serverSeq}, nil
}

// takeDirty returns a snapshot when the scene changed since the last call.
func (r *Room) takeDirty() (*document.Scene, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil, false
	}
	s, err := r.engine.Snapshot()
	if err != nil {
		return nil, false
	}
	r.dirty = false
	return s, true
}

func (r *Room) markDirty() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

func applyOperation(e *engine.Engine, op Operation) error {
	switch op.Type {
	case OpObjectAdd:
		index := -1
		if op.Index != nil {
			index = *op.Index
		}
		return e.InsertObjects(op.Objects, op.ParentID, index)
	case OpObjectUpdate:
		if op.Patch == nil {
			return fmt.Errorf("%w: update without patch", ErrInvalidOperation)
		}
		return e.UpdateObject(op.ObjectID, *op.Patch)
	case OpObjectRemove:
		return e.RemoveObject(op.ObjectID)
	case OpObjectOrder:
		if op.Index == nil {
			return fmt.Errorf("%w: reorder without index", ErrInvalidOperation)
		}
		return e.MoveTo(op.ObjectID, *op.Index)
	case OpSceneReplace:
		label := op.Label
		if label == "" {
			label = "Edit"
		}
		return e.ReplaceScene(op.Scene, label)
	case OpUndo:
		ok, err := e.Undo()
		if err == nil && !ok {
			err = ErrNothingToUndo
		}
		return err
	case OpRedo:
		ok, err := e.Redo()
		if err == nil && !ok {
			err = ErrNothingToRedo
		}
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op.Type)
	}
}

// resyncs reports whether peers must reload the scene after op instead of
// replaying it.
func resyncs(op Operation) bool {
	return op.Type == OpUndo || op.Type == OpRedo
}
