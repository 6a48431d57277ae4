package cache

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 256

type entry struct {
	data    []byte
	expires time.Time // zero never expires
	added   uint64
}

// Memory is a bounded in-process cache. When full, expired entries are
// dropped first, then the oldest.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	max     int
	seq     uint64
	now     func() time.Time
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{entries: make(map[string]entry), max: maxEntries, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.data, true, nil
}

func (m *Memory) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.max {
		m.evictLocked()
	}
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	m.seq++
	m.entries[key] = entry{data: data, expires: expires, added: m.seq}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) expired(e entry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

func (m *Memory) evictLocked() {
	oldestKey := ""
	var oldest uint64
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			continue
		}
		if oldestKey == "" || e.added < oldest {
			oldestKey, oldest = k, e.added
		}
	}
	if len(m.entries) >= m.max && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
