package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryStore is the default in-memory backend: a size-bounded LRU (via
// hashicorp/golang-lru/v2) with per-entry TTL, and golang.org/x/sync/
// singleflight to collapse duplicate in-flight loads for the same key.
type memoryStore struct {
	mu    sync.Mutex
	items *lru.Cache[string, memoryEntry]
	group singleflight.Group
}

func NewMemory(maxItems int) Cache {
	if maxItems <= 0 {
		maxItems = 10000
	}
	items, _ := lru.New[string, memoryEntry](maxItems)
	return &memoryStore{items: items}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.items.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.items.Add(key, memoryEntry{value: value, expiresAt: expiresAt})
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items.Remove(key)
	return nil
}

func (m *memoryStore) InvalidatePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.items.Remove(key)
		}
	}
	return nil
}

func (m *memoryStore) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, _ := m.Get(ctx, key); ok {
		return v, nil
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok, _ := m.Get(ctx, key); ok {
			return v, nil
		}
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = m.Set(ctx, key, loaded, ttl)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (m *memoryStore) Close() error { return nil }
