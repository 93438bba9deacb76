package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// ErrCeilingExceeded 下一次等待会超过 Policy.Ceiling 墙钟上限
var ErrCeilingExceeded = errors.New("retry wall-clock ceiling exceeded")

// DefaultCeiling 不限次数重试时的默认墙钟上限
const DefaultCeiling = 10 * time.Minute

// Policy 重试策略
type Policy struct {
	MaxRetries int           // 0 不重试；负数不限次数，由 Ceiling 约束
	Delay      time.Duration // 第一次重试前的等待
	MaxDelay   time.Duration
	Multiplier float64 // 1.0 即固定间隔
	Jitter     float64 // 抖动比例，0 关闭
	Ceiling    time.Duration

	// Retryable 为 nil 时所有错误都重试
	Retryable func(err error) bool

	// OnRetry 在每次等待前调用，retry 从 1 开始
	OnRetry func(retry int, err error, delay time.Duration)
}

// Fixed 固定间隔、不限次数、受 ceiling 约束。
// 上游限流时等待固定时长后原样重发同一请求。
func Fixed(delay, ceiling time.Duration, retryable func(error) bool) Policy {
	return Policy{
		MaxRetries: -1,
		Delay:      delay,
		MaxDelay:   delay,
		Multiplier: 1,
		Ceiling:    ceiling,
		Retryable:  retryable,
	}
}

// Exponential 指数退避，带 ±25% 抖动
func Exponential(initial, max time.Duration, maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		Delay:      initial,
		MaxDelay:   max,
		Multiplier: 2,
		Jitter:     0.25,
	}
}

// normalize 补齐缺省值；不限次数时必须有上限
func (p Policy) normalize() Policy {
	if p.Delay <= 0 {
		p.Delay = time.Second
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = p.Delay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	if p.Ceiling < 0 {
		p.Ceiling = 0
	}
	if p.MaxRetries < 0 && p.Ceiling == 0 {
		p.Ceiling = DefaultCeiling
	}
	return p
}

// Retryer 按 Policy 重复调用函数
type Retryer struct {
	policy Policy
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New 创建重试器。policy 按值复制，调用方后续修改不影响已创建的 Retryer。
func New(policy Policy, logger *zap.Logger) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{
		policy: policy.normalize(),
		logger: logger.With(zap.String("component", "retry")),
		now:    time.Now,
		sleep:  sleep,
	}
}

// Policy 返回补齐缺省值后的策略
func (r *Retryer) Policy() Policy { return r.policy }

// Do 调用 fn 直到成功、遇到不可重试错误、次数耗尽、超过墙钟上限或 ctx 结束。
// 不可重试错误原样返回；其余失败包装最后一次错误。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	start := r.now()
	var lastErr error

	for retry := 0; r.policy.MaxRetries < 0 || retry <= r.policy.MaxRetries; retry++ {
		if retry > 0 {
			delay := r.backoff(retry)
			elapsed := r.now().Sub(start)
			if r.policy.Ceiling > 0 && elapsed+delay > r.policy.Ceiling {
				r.logger.Warn("retry ceiling exceeded",
					zap.Int("retry", retry),
					zap.Duration("elapsed", elapsed),
					zap.Duration("ceiling", r.policy.Ceiling),
					zap.Error(lastErr))
				return fmt.Errorf("%w after %s: %w", ErrCeilingExceeded, elapsed.Round(time.Millisecond), lastErr)
			}
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(retry, lastErr, delay)
			}
			if err := r.sleep(ctx, delay); err != nil {
				return fmt.Errorf("retry cancelled: %w", err)
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if retry > 0 {
				r.logger.Debug("retry succeeded", zap.Int("retry", retry))
			}
			return nil
		}
		if r.policy.Retryable != nil && !r.policy.Retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("still failing after %d retries: %w", r.policy.MaxRetries, lastErr)
}

// Call 是 Do 的带返回值版本
func Call[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// backoff 第 retry 次重试前的等待时间
func (r *Retryer) backoff(retry int) time.Duration {
	d := float64(r.policy.Delay) * math.Pow(r.policy.Multiplier, float64(retry-1))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * r.policy.Jitter
	}
	if d < float64(r.policy.Delay) {
		d = float64(r.policy.Delay)
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
