package progress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "op-1", Snapshot{Current: 0, Total: 5, Status: StatusFetching}))
	require.NoError(t, s.Set(ctx, "op-1", Snapshot{Current: 3, Total: 5, Status: StatusProcessing}))
	require.NoError(t, s.Set(ctx, "op-2", Snapshot{Current: 1, Total: 1, Status: StatusComplete}))

	got, ok, err := s.Get(ctx, "op-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Current)
	assert.Equal(t, 5, got.Total)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.False(t, got.Terminal())
	assert.False(t, got.UpdatedAt.IsZero())

	got, ok, err = s.Get(ctx, "op-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Terminal())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory(time.Minute))
}

func TestMemoryStore_Expires(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	require.NoError(t, m.Set(context.Background(), "op", Snapshot{Status: StatusComplete}))
	time.Sleep(40 * time.Millisecond)

	_, ok, err := m.Get(context.Background(), "op")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedis(client, 10*time.Minute)
	exerciseStore(t, store)

	assert.True(t, mr.Exists(keyPrefix+"op-1"))
	assert.Equal(t, 10*time.Minute, mr.TTL(keyPrefix+"op-1"))

	mr.FastForward(11 * time.Minute)
	_, ok, err := store.Get(context.Background(), "op-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisFromURL_Invalid(t *testing.T) {
	_, err := NewRedisFromURL("http://nope", time.Minute)
	assert.Error(t, err)
}
