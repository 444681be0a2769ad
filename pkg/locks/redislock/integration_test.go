package redislock_test

import (
	"context"
	"testing"
	"time"

	"github.com/caseway/caseway/pkg/locks/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (string, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
		cancel()
	})

	return "redis://" + endpoint, ctx
}

func TestLockerSerializesSameKey(t *testing.T) {
	redisURL, ctx := setupRedis(t)

	locker, err := redislock.NewLocker(redisURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, locker.Close())
	}()

	unlock, err := locker.Acquire(ctx, "instance-1")
	require.NoError(t, err)

	// A second acquire of the held key must block until its context ends.
	blockedCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(blockedCtx, "instance-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	unlock2, err := locker.Acquire(ctx, "instance-1")
	require.NoError(t, err)
	unlock2()
}

func TestLockerIndependentKeys(t *testing.T) {
	redisURL, ctx := setupRedis(t)

	locker, err := redislock.NewLocker(redisURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, locker.Close())
	}()

	unlockA, err := locker.Acquire(ctx, "instance-a")
	require.NoError(t, err)

	unlockB, err := locker.Acquire(ctx, "instance-b")
	require.NoError(t, err)

	unlockA()
	unlockB()
}

func TestLockerStaleReleaseKeepsNewHolder(t *testing.T) {
	redisURL, ctx := setupRedis(t)

	locker, err := redislock.NewLocker(redisURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, locker.Close())
	}()

	staleUnlock, err := locker.Acquire(ctx, "instance-1")
	require.NoError(t, err)

	// Simulate the holder's TTL expiring and another node taking the
	// lock: overwrite the token behind the first holder's back.
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	client := redis.NewClient(opts)

	defer func() {
		require.NoError(t, client.Close())
	}()

	lockKey := "caseway:lock:instance-1"
	require.NoError(t, client.Set(ctx, lockKey, "other-holder", 30*time.Second).Err())

	// The stale release must not delete the new holder's lock.
	staleUnlock()

	value, err := client.Get(ctx, lockKey).Result()
	require.NoError(t, err)
	assert.Equal(t, "other-holder", value)
}
