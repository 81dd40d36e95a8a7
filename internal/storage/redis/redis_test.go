package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/crystalbeauty/internal/storage"
)

var _ storage.Storage = (*Store)(nil)

func setupTestRedis(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, opts...), mr
}

func TestStore_Get_Success(t *testing.T) {
	s, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart_a@example.com", `[{"productId":"SKU1","qty":2}]`))

	v, ok, err := s.Get(context.Background(), "cart_a@example.com")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"productId":"SKU1","qty":2}]`, v)
}

func TestStore_Get_Missing(t *testing.T) {
	s, _ := setupTestRedis(t)

	v, ok, err := s.Get(context.Background(), "nope")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestStore_Set_NoExpiryByDefault(t *testing.T) {
	s, mr := setupTestRedis(t)

	require.NoError(t, s.Set(context.Background(), "token", "abc"))

	got, err := mr.Get("token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
	assert.Zero(t, mr.TTL("token"))
}

func TestStore_Set_WithTTL(t *testing.T) {
	s, mr := setupTestRedis(t, WithTTL(time.Hour))

	require.NoError(t, s.Set(context.Background(), "token", "abc"))

	assert.Equal(t, time.Hour, mr.TTL("token"))
	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists("token"))
}

func TestStore_Prefix(t *testing.T) {
	s, mr := setupTestRedis(t, WithPrefix("storefront:"))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "wishlist_a@example.com", `["SKU9"]`))
	assert.True(t, mr.Exists("storefront:wishlist_a@example.com"))
	assert.False(t, mr.Exists("wishlist_a@example.com"))

	v, ok, err := s.Get(ctx, "wishlist_a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["SKU9"]`, v)

	require.NoError(t, s.Remove(ctx, "wishlist_a@example.com"))
	assert.False(t, mr.Exists("storefront:wishlist_a@example.com"))
}

func TestStore_Remove_Missing(t *testing.T) {
	s, _ := setupTestRedis(t)
	assert.NoError(t, s.Remove(context.Background(), "nope"))
}

func TestStore_ConnectionError(t *testing.T) {
	s, mr := setupTestRedis(t)
	mr.Close()
	ctx := context.Background()

	_, _, err := s.Get(ctx, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get token")

	err = s.Set(ctx, "token", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set token")

	err = s.Remove(ctx, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis del token")
}
