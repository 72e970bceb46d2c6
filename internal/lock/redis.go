package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTTL  = 30 * time.Second
	holdMargin  = 15 * time.Second
	pollEvery   = 50 * time.Millisecond
	redisPrefix = "speakquest:lock:"
)

// Deletes the key only if it still holds our token.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a Locker shared by every instance pointed at the same
// redis. Locks expire after TTL so a crashed holder cannot wedge a key.
type RedisLocker struct {
	rdb *goredis.Client
	ttl time.Duration
	log *zap.Logger
}

// TTLFor returns a lock TTL that outlives a critical section bounded by
// maxHold. maxHold <= 0 gives the default TTL.
func TTLFor(maxHold time.Duration) time.Duration {
	if maxHold <= 0 {
		return defaultTTL
	}
	return max(maxHold+holdMargin, defaultTTL)
}

// NewRedisLocker connects to addr and verifies it with a PING. Locks
// expire after ttl; ttl <= 0 uses the default.
func NewRedisLocker(ctx context.Context, addr string, ttl time.Duration, log *zap.Logger) (*RedisLocker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, log: log.Named("lock")}, nil
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// Release even if the caller's context is already done.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, r.rdb, []string{redisKey}, token).Err(); err != nil {
			r.log.Warn("release lock failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// Close closes the redis client.
func (r *RedisLocker) Close() error {
	return r.rdb.Close()
}
