package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/prospector/internal/utils"
)

var wait = utils.WaitFor

// Policy describes a bounded retry loop with exponential backoff.
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Base is the delay before the second try. Each following delay doubles.
	Base time.Duration
	// Retryable decides whether an error is worth another try. When nil every
	// error not marked Permanent is retried.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Backoff returns the delay applied after the given zero-based attempt failed.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.Base <= 0 || attempt < 0 {
		return 0
	}
	return p.Base * time.Duration(1<<attempt)
}

func (p Policy) retryable(err error) bool {
	if IsPermanent(err) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. The attempt number passed to fn is zero-based.
// The returned error is the last one produced by fn.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !p.retryable(lastErr) || attempt == attempts-1 {
			return lastErr
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, lastErr)
		}
		if err := wait(ctx, delay); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}

	return lastErr
}
