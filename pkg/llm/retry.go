package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryingAdapter wraps an Adapter with exponential backoff and jitter
// around transient (transport) failures. Timeout and validation errors are
// not retried: a timeout has already consumed the caller's budget, and a
// validation failure will not succeed on replay.
type retryingAdapter struct {
	next         Adapter
	maxRetries   uint64
	initialDelay time.Duration
	maxDelay     time.Duration
	maxElapsed   time.Duration
}

// RetryOption configures NewRetrying.
type RetryOption func(*retryingAdapter)

// WithMaxRetries overrides the default retry count (3).
func WithMaxRetries(n uint64) RetryOption {
	return func(r *retryingAdapter) { r.maxRetries = n }
}

// NewRetrying wraps next so transport errors are retried with jittered
// exponential backoff, bounded by the caller's context.
func NewRetrying(next Adapter, opts ...RetryOption) Adapter {
	r := &retryingAdapter{
		next:         next,
		maxRetries:   3,
		initialDelay: time.Second,
		maxDelay:     30 * time.Second,
		maxElapsed:   2 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *retryingAdapter) backoffFor(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialDelay
	b.MaxInterval = r.maxDelay
	b.MaxElapsedTime = r.maxElapsed
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return IsKind(err, ErrorKindTransport) || IsKind(err, ErrorKindUnknown)
}

func (r *retryingAdapter) Text(ctx context.Context, prompt string) (string, error) {
	var out string
	op := func() error {
		var err error
		out, err = r.next.Text(ctx, prompt)
		if err != nil && !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, r.backoffFor(ctx)); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return "", permanent.Err
		}
		return "", err
	}
	return out, nil
}

func (r *retryingAdapter) Structured(ctx context.Context, prompt string, schema any, schemaName string, out any) error {
	op := func() error {
		err := r.next.Structured(ctx, prompt, schema, schemaName, out)
		if err != nil && !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, r.backoffFor(ctx)); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	return nil
}
