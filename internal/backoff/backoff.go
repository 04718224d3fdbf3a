// Package backoff provides the shared retry policy for remote service calls.
package backoff

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// TransientError marks a failure worth retrying (network loss, 5xx, rate limit,
// timeout). After the policy's attempts are exhausted it is surfaced as-is.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that must not be retried (auth, invalid input).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether err is retryable under the policy. Errors not
// classified either way are treated as permanent.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err was explicitly classified as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ClassifyStatus wraps err according to an HTTP status code: 429 and 5xx are
// transient, everything else permanent.
func ClassifyStatus(status int, err error) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return Transient(err)
	}
	return Permanent(err)
}

// Policy is a reusable retry policy shared by all remote clients.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultPolicy returns the retry policy used for embedding, vector store, and
// generation calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      true,
	}
}

// Delay returns the backoff delay before the given retry attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay << uint(attempt)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
	}
	return d
}

// Retry runs fn until it succeeds, returns a permanent error, or the attempt
// cap is reached. Context cancellation stops waiting between attempts and is
// returned as the context's error.
func (p Policy) Retry(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return err
}
