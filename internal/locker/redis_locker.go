package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "quest_lock:"

// Снимаем блокировку только если она все еще наша.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds lock timings.
type RedisConfig struct {
	TTL          time.Duration // срок жизни блокировки, если процесс упал
	Wait         time.Duration // сколько ждать захвата
	PollInterval time.Duration
}

type redisLocker struct {
	client *redis.Client
	cfg    RedisConfig
	logger *zap.Logger
}

// NewRedisLocker returns a Locker shared by every process using the same Redis.
func NewRedisLocker(client *redis.Client, cfg RedisConfig, logger *zap.Logger) Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 25 * time.Millisecond
	}
	return &redisLocker{
		client: client,
		cfg:    cfg,
		logger: logger.Named("RedisLocker"),
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.Wait)
	defer cancel()

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.cfg.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			l.logger.Error("Failed to acquire redis lock", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}
		select {
		case <-waitCtx.Done():
			l.logger.Warn("Timed out waiting for redis lock", zap.String("key", key), zap.Duration("wait", l.cfg.Wait))
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
		}
	}
}

func (l *redisLocker) unlockFunc(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, token) })
	}
}

func (l *redisLocker) release(redisKey, token string) {
	// Отдельный контекст: снять блокировку нужно даже если запрос уже отменен.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.logger.Warn("Failed to release redis lock", zap.String("key", redisKey), zap.Error(err))
	}
}
