// Package retry provides the bounded backoff policy shared by every
// upstream-calling path.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"wallet-profiler/internal/domain"
)

// Policy retries an operation while it fails with domain.ErrRateLimited.
// Any other error is returned immediately.
type Policy struct {
	MaxAttempts int           // total attempts including the first, minimum 1
	BaseDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // cap on a single delay
	Jitter      float64       // randomization factor in [0, 1]
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Jitter:      0.2,
	}
}

// Do runs op until it succeeds, fails with a non-retryable error,
// exhausts MaxAttempts, or ctx is done.
// Exhausted rate limiting is reported as domain.ErrUpstreamUnavailable.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(p.backOff(), ctx))

	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return fmt.Errorf("%w: gave up after %d attempts: %w", domain.ErrUpstreamUnavailable, attempts, err)
	}
	return err
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Millisecond
	}
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.RandomizationFactor = min(max(p.Jitter, 0), 1)
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}
