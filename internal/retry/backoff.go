package retry

import (
	"context"
	"time"
)

// Policy configures exponential-backoff retries. Conversation reads use
// ReadPolicy; writes are deliberately single-attempt and never go through
// this package.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	Multiplier  float64       // delay growth factor
}

// ReadPolicy is the policy applied to conversation and thread reads:
// 3 attempts, 1s base delay, doubling.
func ReadPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2.0}
}

// SleepFunc abstracts the backoff delay so tests can count sleeps instead of
// waiting them out.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Do runs op until it succeeds or the policy is exhausted, sleeping between
// attempts. Returns the last error on exhaustion, or the context error if
// cancelled mid-backoff.
func Do(ctx context.Context, p Policy, sleep SleepFunc, op func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = Sleep
	}

	delay := p.BaseDelay
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		last = op()
		if last == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return last
}
