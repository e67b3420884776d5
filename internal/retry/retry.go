// Package retry wraps individual remote calls with a bounded exponential
// backoff. Only temporary network failures are retried.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/waabox/ontoloci/internal/domain"
)

// Policy bounds the retries of one remote call.
type Policy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry, when set, is called before each wait.
	OnRetry func(err error, wait time.Duration)
}

// None performs every call exactly once.
var None = Policy{}

// Do runs op until it succeeds, returns a non-temporary error, the retry
// budget is exhausted or ctx is done.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxRetries <= 0 {
		return op(ctx)
	}

	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxRetries)), ctx)

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}
	return backoff.RetryNotify(func() error {
		err := op(ctx)
		if err != nil && !domain.IsTemporary(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
}
