package keylock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "postback:lock:"

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker shares locks between instances through SET NX with a TTL. The
// TTL bounds how long a crashed holder can block a key.
type RedisLocker struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryEvery time.Duration
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client redis.UniversalClient, ttl, retryEvery time.Duration) *RedisLocker {
	if retryEvery <= 0 {
		retryEvery = 25 * time.Millisecond
	}
	return &RedisLocker{client: client, ttl: ttl, retryEvery: retryEvery}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", redisKey, err)
		}
		if ok {
			return func() { l.release(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release runs on a fresh context so a cancelled request still frees its key.
func (l *RedisLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		slog.Warn("release lock failed", "key", redisKey, "error", err)
	}
}

// Ping checks the Redis connection.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
