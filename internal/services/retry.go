package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultResolveMaxAttempts = 3
	DefaultResolveBaseDelay   = time.Second
	defaultRetryMultiplier    = 2.0
)

// RetryPolicy is a bounded exponential backoff without jitter. With the
// defaults the waits between three attempts are 1s and 2s.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	// NewTimer overrides the wait timer. Nil uses a real timer.
	NewTimer func() backoff.Timer
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultResolveMaxAttempts,
		BaseDelay:   DefaultResolveBaseDelay,
		Multiplier:  defaultRetryMultiplier,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = defaultRetryMultiplier
	}
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, returns a backoff.Permanent error, the
// attempts are used up or ctx is done. It returns the number of attempts made
// and the last error. notify is called before every wait.
func (p RetryPolicy) Do(ctx context.Context, op func() error, notify func(err error, wait time.Duration)) (int, error) {
	attempts := 0
	counted := func() error {
		attempts++
		return op()
	}

	var timer backoff.Timer
	if p.NewTimer != nil {
		timer = p.NewTimer()
	}

	err := backoff.RetryNotifyWithTimer(counted, p.backOff(ctx), notify, timer)
	return attempts, err
}
