package lotterysim

import (
	"context"
	"time"
)

// RetryPolicy bounds the fetch validation loop.
// MaxAttempts == 0 retries until the context is done.
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Multiplier  float64       `mapstructure:"backoff_multiplier"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// DefaultRetryPolicy returns 5 attempts with a fixed 2s backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultFetchMaxAttempts,
		Backoff:     DefaultFetchBackoff,
		Multiplier:  DefaultFetchBackoffMultiplier,
		MaxBackoff:  DefaultFetchMaxBackoff,
	}
}

// Validate 验证重试策略
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 0 || p.MaxAttempts > MaxFetchAttempts {
		return ErrConfigInvalid.WithDetailsf("max attempts must be in [0, %d], got %d", MaxFetchAttempts, p.MaxAttempts)
	}
	if p.Backoff < 0 || p.MaxBackoff < 0 {
		return ErrConfigInvalid.WithDetails("backoff cannot be negative")
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return ErrConfigInvalid.WithDetailsf("backoff multiplier must be >= 1, got %v", p.Multiplier)
	}
	return nil
}

// Unbounded reports whether the policy retries forever
func (p RetryPolicy) Unbounded() bool {
	return p.MaxAttempts == 0
}

// Delay returns the wait before the given retry (1-based)
func (p RetryPolicy) Delay(retry int) time.Duration {
	delay := p.Backoff
	if p.Multiplier > 1 {
		for i := 1; i < retry; i++ {
			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
				return p.MaxBackoff
			}
		}
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
