package retry

import (
	"context"
	"errors"
	"time"
)

// Backoff defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 50 * time.Millisecond
	DefaultMaxDelay    = 2 * time.Second
	DefaultMultiplier  = 4
)

// BackoffPolicy retries transient errors with exponential backoff.
// Sequence for the defaults: 50ms, 200ms, then the attempt ceiling.
type BackoffPolicy struct {
	// MaxAttempts is the total attempt count including the first.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  int

	// ContinueOnError degrades instead of aborting when attempts run out.
	ContinueOnError bool
}

// DefaultPolicy returns a BackoffPolicy with the package defaults that continues on error.
func DefaultPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		BaseDelay:       DefaultBaseDelay,
		MaxDelay:        DefaultMaxDelay,
		Multiplier:      DefaultMultiplier,
		ContinueOnError: true,
	}
}

// ShouldRetry implements Policy.
func (p BackoffPolicy) ShouldRetry(err error, attempt int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return attempt < p.MaxAttempts && IsTransient(err)
}

// RetryDelay implements Policy.
func (p BackoffPolicy) RetryDelay(attempt int) time.Duration {
	if attempt <= 0 || p.BaseDelay <= 0 {
		return 0
	}

	mult := time.Duration(max(p.Multiplier, 1))

	dur := p.BaseDelay
	for range attempt - 1 {
		dur *= mult

		if p.MaxDelay > 0 && dur >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 {
		return min(dur, p.MaxDelay)
	}

	return dur
}

// ShouldContinueOnError implements Policy.
func (p BackoffPolicy) ShouldContinueOnError(error) bool {
	return p.ContinueOnError
}

// Never is a policy that runs work once and aborts on failure.
type Never struct{}

// ShouldRetry implements Policy.
func (Never) ShouldRetry(error, int) bool { return false }

// RetryDelay implements Policy.
func (Never) RetryDelay(int) time.Duration { return 0 }

// ShouldContinueOnError implements Policy.
func (Never) ShouldContinueOnError(error) bool { return false }

type transientError struct {
	err error
}

func (e *transientError) Error() string   { return e.err.Error() }
func (e *transientError) Unwrap() error   { return e.err }
func (e *transientError) Temporary() bool { return true }

// Transient marks err as worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// IsTransient reports whether err, or anything it wraps, reports itself as temporary.
func IsTransient(err error) bool {
	var temp interface{ Temporary() bool }

	return errors.As(err, &temp) && temp.Temporary()
}
