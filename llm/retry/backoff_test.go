package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeClock 让 sleep 立即返回并推进 now，记录每次等待
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func install(r *Retryer) *fakeClock {
	c := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	r.now = func() time.Time { return c.t }
	r.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.sleeps = append(c.sleeps, d)
		c.t = c.t.Add(d)
		return nil
	}
	return c
}

var errFlaky = errors.New("flaky")

func failTimes(n int, calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls <= n {
			return errFlaky
		}
		return nil
	}
}

func TestDo_FirstCallSucceeds(t *testing.T) {
	r := New(Exponential(time.Second, time.Minute, 3), zaptest.NewLogger(t))
	clock := install(r)

	calls := 0
	require.NoError(t, r.Do(context.Background(), failTimes(0, &calls)))
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.sleeps)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	p := Exponential(100*time.Millisecond, time.Second, 5)
	p.Jitter = 0
	r := New(p, nil)
	clock := install(r)

	calls := 0
	require.NoError(t, r.Do(context.Background(), failTimes(3, &calls)))
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, clock.sleeps)
}

func TestDo_RetriesExhausted(t *testing.T) {
	r := New(Exponential(10*time.Millisecond, time.Second, 2), nil)
	install(r)

	calls := 0
	err := r.Do(context.Background(), failTimes(10, &calls))
	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableReturnedAsIs(t *testing.T) {
	fatal := errors.New("fatal")
	p := Fixed(time.Second, time.Minute, func(err error) bool { return errors.Is(err, errFlaky) })
	r := New(p, nil)
	clock := install(r)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errFlaky
		}
		return fatal
	})
	assert.Same(t, fatal, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, clock.sleeps, 1)
}

func TestDo_FixedDelayUnlimited(t *testing.T) {
	r := New(Fixed(5*time.Second, time.Hour, nil), nil)
	clock := install(r)

	calls := 0
	require.NoError(t, r.Do(context.Background(), failTimes(20, &calls)))
	assert.Equal(t, 21, calls)
	require.Len(t, clock.sleeps, 20)
	for _, d := range clock.sleeps {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestDo_CeilingExceeded(t *testing.T) {
	r := New(Fixed(5*time.Second, 12*time.Second, nil), nil)
	clock := install(r)

	calls := 0
	err := r.Do(context.Background(), failTimes(100, &calls))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCeilingExceeded)
	assert.ErrorIs(t, err, errFlaky)
	// 0s, 5s, 10s 三次调用；第三次后再等 5s 会到 15s > 12s
	assert.Equal(t, 3, calls)
	assert.Len(t, clock.sleeps, 2)
}

func TestDo_Cancelled(t *testing.T) {
	r := New(Fixed(time.Hour, 2*time.Hour, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, failTimes(100, &calls))
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "retry cancelled")
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetry(t *testing.T) {
	type hook struct {
		retry int
		delay time.Duration
	}
	var hooks []hook
	p := Fixed(time.Second, time.Minute, nil)
	p.OnRetry = func(retry int, err error, delay time.Duration) {
		assert.ErrorIs(t, err, errFlaky)
		hooks = append(hooks, hook{retry, delay})
	}
	r := New(p, nil)
	install(r)

	calls := 0
	require.NoError(t, r.Do(context.Background(), failTimes(2, &calls)))
	assert.Equal(t, []hook{{1, time.Second}, {2, time.Second}}, hooks)
}

func TestBackoff_JitterBounds(t *testing.T) {
	r := New(Exponential(100*time.Millisecond, time.Second, 10), nil)
	for retry := 1; retry <= 6; retry++ {
		base := float64(100*time.Millisecond) * float64(int(1)<<(retry-1))
		if base > float64(time.Second) {
			base = float64(time.Second)
		}
		for i := 0; i < 50; i++ {
			d := r.backoff(retry)
			assert.GreaterOrEqual(t, d, 100*time.Millisecond)
			assert.LessOrEqual(t, float64(d), base*1.25+1)
		}
	}
}

func TestNew_Normalize(t *testing.T) {
	p := New(Policy{MaxRetries: -1}, nil).Policy()
	assert.Equal(t, DefaultCeiling, p.Ceiling, "unlimited retries get a ceiling")
	assert.Equal(t, time.Second, p.Delay)
	assert.Equal(t, time.Second, p.MaxDelay)
	assert.Equal(t, 1.0, p.Multiplier)

	orig := Fixed(time.Second, 0, nil)
	New(orig, nil)
	assert.Zero(t, orig.Ceiling, "caller's policy is not mutated")
}

func TestCall(t *testing.T) {
	r := New(Fixed(time.Millisecond, time.Second, nil), nil)
	install(r)

	calls := 0
	v, err := Call(context.Background(), r, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "partial", errFlaky
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	r = New(Exponential(time.Millisecond, time.Millisecond, 1), nil)
	install(r)
	v, err = Call(context.Background(), r, func(context.Context) (string, error) {
		return "partial", errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Empty(t, v, "zero value on failure")
}
