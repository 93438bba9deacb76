package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// 只删除自己持有的锁
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	// 只续期自己持有的锁
	refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker 基于 SET NX PX 的跨进程锁
type RedisLocker struct {
	client *redis.Client
	config Config
	logger *zap.Logger
}

// NewRedisLocker 创建 Redis 锁并测试连接
func NewRedisLocker(config Config, logger *zap.Logger) (*RedisLocker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis lock initialized",
		zap.String("addr", config.Addr),
		zap.Duration("ttl", config.TTL),
	)

	return &RedisLocker{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "lock")),
	}, nil
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (Release, error) {
	key = l.config.KeyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.refreshLoop(key, token, stop, done)

	l.logger.Debug("lock acquired", zap.String("key", key))

	var once sync.Once
	var releaseErr error
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("failed to release lock %s: %w", key, err)
				return
			}
			l.logger.Debug("lock released", zap.String("key", key))
		})
		return releaseErr
	}, nil
}

// refreshLoop 持有期间按 TTL/3 续期
func (l *RedisLocker) refreshLoop(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.config.TTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.config.TTL.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				l.logger.Warn("lock refresh failed", zap.String("key", key), zap.Error(err))
			case n == 0:
				l.logger.Error("lock lost before release", zap.String("key", key))
				return
			}
		}
	}
}

// Ping 检查 Redis 连接
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
