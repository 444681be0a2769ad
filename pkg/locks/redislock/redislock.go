// Package redislock provides a Redis-backed locks.Locker for
// multi-node deployments.
package redislock

import (
	"context"
	"time"

	"github.com/caseway/caseway/pkg/locks"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL       = 30 * time.Second
	acquirePoll      = 50 * time.Millisecond
	lockKeyPrefix    = "caseway:lock:"
	releaseScriptSrc = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`
)

var releaseScript = redis.NewScript(releaseScriptSrc)

// Locker implements locks.Locker on top of Redis SET NX with a TTL.
// Release is token-checked so an expired holder cannot delete a lock
// that has since been re-acquired by another node.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker creates a Redis-backed locker from a connection URL.
func NewLocker(redisURL string) (*Locker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &Locker{client: redis.NewClient(opts), ttl: defaultTTL}, nil
}

func (l *Locker) Acquire(ctx context.Context, key string) (locks.UnlockFunc, error) {
	redisKey := lockKeyPrefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}

		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
			}, nil
		}

		select {
		case <-time.After(acquirePoll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close releases the underlying Redis connection.
func (l *Locker) Close() error {
	return l.client.Close()
}
