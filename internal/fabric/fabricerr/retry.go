package fabricerr

import (
	"context"
	"time"
)

// RetryPolicy is the exponential backoff policy mandated for transient
// Storage errors: 3 attempts, 100ms initial delay, doubling, capped at 5s.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Multiplier  float64
	Cap         time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Initial:     100 * time.Millisecond,
		Multiplier:  2,
		Cap:         5 * time.Second,
	}
}

// Retry runs fn up to p.MaxAttempts times, backing off between attempts,
// but only when the returned error is a transient Storage error. Any other
// error kind returns immediately without retrying.
func Retry(ctx context.Context, p RetryPolicy, fn func() error) error {
	delay := p.Initial
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == p.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= time.Duration(p.Multiplier)
		if delay > p.Cap {
			delay = p.Cap
		}
	}
	return err
}
