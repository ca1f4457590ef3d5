// Package retry runs operations with bounded exponential backoff.
//
// It is a thin layer over cenkalti/backoff so callers share one policy type
// and one way of marking an error as final.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPolicy is used for outbound calls to Google, the platforms and the
// LLM provider: 3 tries, 200ms doubling up to 2s.
var DefaultPolicy = Policy{
	MaxTries:        3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsed:      15 * time.Second,
}

// NoWait retries immediately. Tests use it so failures don't sleep.
var NoWait = Policy{MaxTries: 3}

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a Permanent error, the context is
// done, or the policy runs out of tries.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	opts := []backoff.RetryOption{backoff.WithBackOff(p.backOff())}
	if p.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxTries))
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}

	res, err := backoff.Retry(ctx, op, opts...)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return res, perm.Unwrap()
		}
		return res, err
	}
	return res, nil
}

func (p Policy) backOff() backoff.BackOff {
	if p.InitialInterval <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}
