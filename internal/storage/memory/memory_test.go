package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/crystalbeauty/internal/storage"
)

var _ storage.Storage = (*Store)(nil)

func TestStore_GetMissing(t *testing.T) {
	s := New()

	v, ok, err := s.Get(context.Background(), "cart_a@example.com")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, "token", "abc"))
	v, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Set(ctx, "token", "def"))
	v, _, _ = s.Get(ctx, "token")
	assert.Equal(t, "def", v)

	require.NoError(t, s.Remove(ctx, "token"))
	_, ok, _ = s.Get(ctx, "token")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	assert.NoError(t, s.Remove(ctx, "token"))
}

func TestStore_EmptyValueIsPresent(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, "k", ""))
	_, ok, err := s.Get(ctx, "k")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = s.Set(ctx, key, "v")
			_, _, _ = s.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, s.Len())
}
