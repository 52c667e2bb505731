package service

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries an operation with exponential backoff. Only errors the
// Retryable predicate accepts are retried; everything else surfaces on the
// first attempt.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	Retryable    func(error) bool
	// OnRetry runs before each backoff sleep with the attempt number that
	// just failed.
	OnRetry func(attempt int, err error)
}

func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
}

// withTimeout bounds an operation and converts deadline expiry into the
// service timeout error.
func withTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
