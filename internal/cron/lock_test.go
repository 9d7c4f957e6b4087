package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	first, err := NewRedisLock(store, "bp:lock:cron-worker", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "bp:lock:cron-worker", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls["bp:lock:cron-worker"])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "bp:lock:cron-worker", "non-owner must not release")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockLeavesForeignOwnerAlone(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// the key expired and another replica took it
	store.values["k"] = "someone-else"
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "someone-else", store.values["k"])

	delete(store.values, "k")
	require.NoError(t, lock.Release(ctx), "releasing twice is a no-op")
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryStore(), "", 0)
	require.Error(t, err)
}
