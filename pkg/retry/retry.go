package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	MaxAttempts     int // <= 0 means retry until the context is canceled
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// UnboundedPolicy retries forever with bounded backoff intervals. Used where
// giving up would mean losing data and the caller relies on backpressure
// instead.
func UnboundedPolicy() Policy {
	return Policy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	var b backoff.BackOff
	if policy.MaxElapsedTime > 0 {
		b = ExponentialBackoffWithMaxElapsed(
			policy.InitialInterval,
			policy.MaxInterval,
			policy.MaxElapsedTime,
			policy.Multiplier,
		)
	} else {
		b = ExponentialBackoff(
			policy.InitialInterval,
			policy.MaxInterval,
			policy.Multiplier,
		)
	}

	b = backoff.WithContext(b, ctx)
	if policy.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
	}

	return backoff.Retry(fn, b)
}

// RetryNotify is Retry with a callback before each sleep, for logging.
func RetryNotify(ctx context.Context, policy Policy, fn func() error, notify func(err error, next time.Duration)) error {
	var b backoff.BackOff
	if policy.MaxElapsedTime > 0 {
		b = ExponentialBackoffWithMaxElapsed(
			policy.InitialInterval,
			policy.MaxInterval,
			policy.MaxElapsedTime,
			policy.Multiplier,
		)
	} else {
		b = ExponentialBackoff(
			policy.InitialInterval,
			policy.MaxInterval,
			policy.Multiplier,
		)
	}

	b = backoff.WithContext(b, ctx)
	if policy.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
	}

	return backoff.RetryNotify(fn, b, notify)
}
