// Package lock provides the output-slot lock.
// This package is internal and should not be imported by external projects.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneforge/llm/retry"
)

// ErrLocked 锁被其他持有者占用
var ErrLocked = errors.New("lock is held by another owner")

// Release 释放一把已获取的锁。重复调用是安全的。
type Release func(ctx context.Context) error

// Locker 按 key 互斥。同一输出目录同一时刻只允许一个运行写入。
type Locker interface {
	// TryAcquire 立即返回；被占用时返回 ErrLocked
	TryAcquire(ctx context.Context, key string) (Release, error)
	Close() error
}

// Config 锁配置
type Config struct {
	// Backend: local / redis
	Backend string `yaml:"backend" json:"backend" env:"BACKEND"`

	// Redis 地址
	Addr string `yaml:"addr" json:"addr" env:"ADDR"`

	// 密码
	Password string `yaml:"password" json:"password" env:"PASSWORD"`

	// 数据库编号
	DB int `yaml:"db" json:"db" env:"DB"`

	// KeyPrefix 所有锁 key 的前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" env:"KEY_PREFIX"`

	// TTL 锁过期时间，持有期间按 TTL/3 续期
	TTL time.Duration `yaml:"ttl" json:"ttl" env:"TTL"`

	// WaitTimeout Acquire 的最长等待时间；0 表示不等待
	WaitTimeout time.Duration `yaml:"wait_timeout" json:"wait_timeout" env:"WAIT_TIMEOUT"`

	// RetryInterval 等待期间的重试间隔
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval" env:"RETRY_INTERVAL"`
}

// DefaultConfig 返回默认锁配置
func DefaultConfig() Config {
	return Config{
		Backend:       "local",
		Addr:          "localhost:6379",
		KeyPrefix:     "sceneforge:slot:",
		TTL:           30 * time.Second,
		WaitTimeout:   0,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Validate 检查配置
func (c Config) Validate() error {
	switch c.Backend {
	case "local":
	case "redis":
		if c.Addr == "" {
			return errors.New("lock: redis addr is required")
		}
		if c.TTL <= 0 {
			return fmt.Errorf("lock: ttl must be positive, got %s", c.TTL)
		}
	default:
		return fmt.Errorf("lock: unsupported backend %q", c.Backend)
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("lock: wait_timeout must not be negative, got %s", c.WaitTimeout)
	}
	return nil
}

// New 按配置创建 Locker
func New(config Config, logger *zap.Logger) (Locker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Backend == "redis" {
		return NewRedisLocker(config, logger)
	}
	return NewLocalLocker(config.KeyPrefix), nil
}

// Acquire 在 wait 时间内重试 TryAcquire，间隔从 interval 开始指数增长（上限 8*interval）。
// wait <= 0 时只尝试一次。
func Acquire(ctx context.Context, l Locker, key string, wait, interval time.Duration) (Release, error) {
	if wait <= 0 {
		return l.TryAcquire(ctx, key)
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	policy := retry.Exponential(interval, 8*interval, -1)
	policy.Ceiling = wait
	policy.Retryable = func(err error) bool { return errors.Is(err, ErrLocked) }

	var release Release
	err := retry.New(policy, nil).Do(ctx, func(ctx context.Context) error {
		r, err := l.TryAcquire(ctx, key)
		if err != nil {
			return err
		}
		release = r
		return nil
	})
	if err != nil {
		if errors.Is(err, retry.ErrCeilingExceeded) {
			return nil, fmt.Errorf("%w: waited %s for %s", ErrLocked, wait, key)
		}
		return nil, err
	}
	return release, nil
}
