package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/task-coach/pkg/logger"
)

func setupTestLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisLocker(rdb, ttl, logger.New("debug", "text", "stdout")), mr
}

func TestRedisLocker_Exclusive(t *testing.T) {
	locker, mr := setupTestLocker(t, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"alice"))

	_, err = locker.Acquire(ctx, "alice")
	assert.ErrorIs(t, err, ErrLocked)

	// Different owners do not contend.
	releaseBob, err := locker.Acquire(ctx, "bob")
	require.NoError(t, err)
	releaseBob()

	release()
	assert.False(t, mr.Exists(keyPrefix+"alice"))

	release, err = locker.Acquire(ctx, "alice")
	require.NoError(t, err)
	release()
}

func TestRedisLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	locker, mr := setupTestLocker(t, time.Second)
	ctx := context.Background()

	staleRelease, err := locker.Acquire(ctx, "alice")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := locker.Acquire(ctx, "alice")
	require.NoError(t, err)

	// The first holder's release must not drop the second holder's lock.
	staleRelease()
	assert.True(t, mr.Exists(keyPrefix+"alice"))

	release()
	assert.False(t, mr.Exists(keyPrefix+"alice"))
}

func TestNoopLocker(t *testing.T) {
	var l Locker = NoopLocker{}
	release, err := l.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	release()
}
