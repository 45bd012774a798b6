package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository"
)

func setupTestRedis(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewIdempotencyStore(client), mr
}

// --- Reserve Tests ---

func TestIdempotencyStore_Reserve_NewKey(t *testing.T) {
	store, mr := setupTestRedis(t)

	data, err := store.Reserve(context.Background(), "user-1:abc", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, data)

	got, err := mr.Get(keyPrefix + "user-1:abc")
	require.NoError(t, err)
	assert.Equal(t, pendingValue, got)
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"user-1:abc"))
}

func TestIdempotencyStore_Reserve_InFlight(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k", time.Hour)
	require.NoError(t, err)

	data, err := store.Reserve(ctx, "k", time.Hour)
	assert.ErrorIs(t, err, repository.ErrIdempotencyInFlight)
	assert.Nil(t, data)
}

func TestIdempotencyStore_Reserve_Completed(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k", []byte(`{"order":{"id":"o-1"}}`), time.Hour))

	data, err := store.Reserve(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.JSONEq(t, `{"order":{"id":"o-1"}}`, string(data))
}

func TestIdempotencyStore_Reserve_AfterExpiry(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	data, err := store.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestIdempotencyStore_Reserve_RedisDown(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Reserve(context.Background(), "k", time.Hour)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrIdempotencyInFlight)
	assert.Contains(t, err.Error(), "redis reserve idempotency key")
}

// --- Release Tests ---

func TestIdempotencyStore_Release(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k"))
	assert.False(t, mr.Exists(keyPrefix+"k"))

	data, err := store.Reserve(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestIdempotencyStore_Release_MissingKey(t *testing.T) {
	store, _ := setupTestRedis(t)
	assert.NoError(t, store.Release(context.Background(), "never-set"))
}
