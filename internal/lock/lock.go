// Package lock serializes work per owner across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aimd54/task-coach/internal/config"
	"github.com/aimd54/task-coach/pkg/logger"
)

// ErrLocked is returned when another invocation holds the owner's lock.
var ErrLocked = errors.New("owner is locked by another invocation")

const keyPrefix = "task-coach:lock:"

// DefaultTTL bounds how long a crashed holder can block an owner.
const DefaultTTL = 2 * time.Minute

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires per-owner locks. The returned func releases the lock.
type Locker interface {
	Acquire(ctx context.Context, owner string) (release func(), err error)
}

// RedisLocker holds locks as SET NX PX keys with random tokens.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewRedisLocker creates a new Redis-backed locker.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, log: log}
}

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// Acquire takes the owner's lock or returns ErrLocked without waiting.
func (l *RedisLocker) Acquire(ctx context.Context, owner string) (func(), error) {
	key := keyPrefix + owner
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock for %s: %w", owner, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, owner)
	}

	l.log.Debug().Str("owner", owner).Str("token", token).Msg("Acquired owner lock")

	return func() {
		// The caller's context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Int()
		if err != nil {
			l.log.Error().Err(err).Str("owner", owner).Msg("Failed to release owner lock")
			return
		}
		if n == 0 {
			l.log.Warn().Str("owner", owner).Msg("Owner lock expired before release")
		}
	}, nil
}

// NoopLocker never blocks. It is used when Redis is not configured.
type NoopLocker struct{}

// Acquire implements Locker.
func (NoopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
