package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	c := NewMemory(10)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	c := NewMemory(10)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok, "expected entry to have expired")
}

func TestMemoryStoreInvalidatePrefix(t *testing.T) {
	c := NewMemory(10)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "query:a:1", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "query:a:2", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "query:b:1", []byte("v"), time.Minute))

	require.NoError(t, c.InvalidatePrefix(ctx, "query:a:"))

	_, ok, _ := c.Get(ctx, "query:a:1")
	assert.False(t, ok, "expected query:a:1 invalidated")
	_, ok, _ = c.Get(ctx, "query:a:2")
	assert.False(t, ok, "expected query:a:2 invalidated")
	_, ok, _ = c.Get(ctx, "query:b:1")
	assert.True(t, ok, "expected query:b:1 to survive")
}

func TestMemoryStoreGetOrLoadCollapsesConcurrentMisses(t *testing.T) {
	c := NewMemory(10)
	ctx := context.Background()
	var calls int64

	load := func(context.Context) ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return []byte("result"), nil
	}

	done := make(chan []byte, 5)
	for i := 0; i < 5; i++ {
		go func() {
			v, err := c.GetOrLoad(ctx, "shared-key", time.Minute, load)
			assert.NoError(t, err)
			done <- v
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls), "expected exactly 1 load call")
}
