package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
)

// RedisConfig holds the redis connection and lock timing.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	TTL          time.Duration
	PollInterval time.Duration
}

// DefaultRedisConfig returns a local redis with a 30s lock TTL.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "opcentrix:lock:",
		TTL:          30 * time.Second,
		PollInterval: 25 * time.Millisecond,
	}
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every replica using the same
// redis instance.
type RedisLocker struct {
	rdb    *goredis.Client
	config *RedisConfig
	logger *logging.Logger
}

// NewRedisClient connects and pings redis.
func NewRedisClient(ctx context.Context, config *RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", config.Addr, err)
	}
	return rdb, nil
}

// NewRedisLocker wraps an existing client.
func NewRedisLocker(rdb *goredis.Client, config *RedisConfig, logger *logging.Logger) *RedisLocker {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 25 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RedisLocker{rdb: rdb, config: config, logger: logger.WithComponent("redis-lock")}
}

// Acquire polls SET NX until it wins or ctx ends. The lock expires after TTL
// if the holder dies without releasing it.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.config.KeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockUnavailable, key, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockUnavailable, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be done; release on a fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
			l.logger.WithError(err).Warn("failed to release lock", "key", redisKey)
		}
	}
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
