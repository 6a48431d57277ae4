// Package design persists customer designs as versioned scene snapshots and
// serves the quote and validation endpoints built on them.
package design

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luneo/canvas-engine/internal/document"
)

var ErrNotFound = errors.New("design not found")

// Snapshot is one saved version of a design. Versions start at 1 and grow by
// one per save.
type Snapshot struct {
	DesignID  string          `json:"designId"`
	Version   int             `json:"version"`
	SavedBy   string          `json:"savedBy,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Scene     *document.Scene `json:"scene"`
}

type Store interface {
	// Save appends a new version and returns it without the scene.
	Save(ctx context.Context, designID, savedBy string, s *document.Scene) (Snapshot, error)
	// Latest returns the newest version, or ErrNotFound.
	Latest(ctx context.Context, designID string) (Snapshot, error)
	// Version returns one version, or ErrNotFound.
	Version(ctx context.Context, designID string, version int) (Snapshot, error)
}

// MemoryStore keeps every version in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]Snapshot
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: map[string][]Snapshot{}, now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, designID, savedBy string, s *document.Scene) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		DesignID:  designID,
		Version:   len(m.versions[designID]) + 1,
		SavedBy:   savedBy,
		CreatedAt: m.now().UTC(),
		Scene:     s.Clone(),
	}
	m.versions[designID] = append(m.versions[designID], snap)
	snap.Scene = nil
	return snap, nil
}

func (m *MemoryStore) Latest(_ context.Context, designID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vs := m.versions[designID]
	if len(vs) == 0 {
		return Snapshot{}, ErrNotFound
	}
	return copySnapshot(vs[len(vs)-1]), nil
}

func (m *MemoryStore) Version(_ context.Context, designID string, version int) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vs := m.versions[designID]
	if version < 1 || version > len(vs) {
		return Snapshot{}, ErrNotFound
	}
	return copySnapshot(vs[version-1]), nil
}

func copySnapshot(s Snapshot) Snapshot {
	s.Scene = s.Scene.Clone()
	return s
}
