package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitLockExpiredHolderCannotFreeNewerSubmit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lock, err := newSubmitLock(client, 2*time.Second)
	require.NoError(t, err)
	ctx := context.Background()
	key := submitKey(" 42 ", "user-1", "booking")
	assert.Equal(t, "marketplace:create:lock:42:user-1:booking", key)

	slow, ok, err := lock.acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(3 * time.Second)

	fresh, ok, err := lock.acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, slow, fresh)

	require.NoError(t, lock.release(ctx, key, slow))
	held, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, fresh, held)

	require.NoError(t, lock.release(ctx, key, fresh))
	assert.False(t, mr.Exists(key))
}

func TestSubmitLockRejectsBadSetup(t *testing.T) {
	_, err := newSubmitLock(nil, time.Second)
	assert.ErrorIs(t, err, errSubmitLockUnset)

	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { _ = client.Close() })
	_, err = newSubmitLock(client, 0)
	assert.Error(t, err)

	lock, err := newSubmitLock(client, time.Second)
	require.NoError(t, err)
	_, _, err = lock.acquire(context.Background(), "")
	assert.ErrorIs(t, err, errSubmitKeyEmpty)
}
