package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4)

	_, ok, err := m.Get(ctx, "export:a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "export:a", []byte("png"), time.Minute))
	data, ok, err := m.Get(ctx, "export:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("png"), data)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(4)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "forever", []byte("2"), 0))

	now = now.Add(2 * time.Second)
	_, ok, _ := m.Get(ctx, "short")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	require.NoError(t, m.Set(ctx, "a", []byte("a"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("b"), 0))
	require.NoError(t, m.Set(ctx, "a", []byte("a2"), 0))
	require.NoError(t, m.Set(ctx, "c", []byte("c"), 0))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok, "b was written least recently")
	data, ok, _ := m.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, []byte("a2"), data)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	c := New(context.Background(), Config{}, nil)
	assert.IsType(t, &Memory{}, c)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c = New(ctx, Config{Addr: "127.0.0.1:1"}, nil)
	assert.IsType(t, &Memory{}, c)
}
