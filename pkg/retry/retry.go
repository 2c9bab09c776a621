// Package retry runs fallible work under a pluggable error-handling policy
// that decides between retrying, continuing with a degraded result, or aborting.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Action is the control-flow decision taken after a failed attempt.
type Action int

// Actions.
const (
	ActionRetry Action = iota
	ActionContinue
	ActionAbort
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionContinue:
		return "continue"
	case ActionAbort:
		return "abort"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Policy classifies errors. The executor holds no attempt ceiling of its own;
// a policy that always retries retries forever.
type Policy interface {
	// ShouldRetry reports whether another attempt follows the given failed one (1-based).
	ShouldRetry(err error, attempt int) bool

	// RetryDelay is the pause before the attempt after the given one.
	RetryDelay(attempt int) time.Duration

	// ShouldContinueOnError reports whether a final failure degrades instead of aborting.
	ShouldContinueOnError(err error) bool
}

// Decision is the outcome of consulting a policy about one failure.
type Decision struct {
	Action  Action
	Delay   time.Duration
	Message string
}

// Decide consults p about err after the given attempt.
func Decide(p Policy, err error, attempt int) Decision {
	if p.ShouldRetry(err, attempt) {
		delay := p.RetryDelay(attempt)

		return Decision{
			Action:  ActionRetry,
			Delay:   delay,
			Message: fmt.Sprintf("attempt %d failed, retrying in %s: %v", attempt, delay, err),
		}
	}

	if p.ShouldContinueOnError(err) {
		return Decision{
			Action:  ActionContinue,
			Message: fmt.Sprintf("giving up after %d attempt(s), continuing: %v", attempt, err),
		}
	}

	return Decision{
		Action:  ActionAbort,
		Message: fmt.Sprintf("giving up after %d attempt(s): %v", attempt, err),
	}
}

// ErrExhausted matches any ExhaustedError via errors.Is.
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError is returned once the policy declines further attempts.
// Action is ActionContinue when the caller should degrade rather than fail.
type ExhaustedError struct {
	Action   Action
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrExhausted, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrExhausted) true.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Degraded reports whether err is an exhausted retry the policy chose to continue past.
func Degraded(err error) bool {
	var ex *ExhaustedError

	return errors.As(err, &ex) && ex.Action == ActionContinue
}

// Observer is notified before each retry.
type Observer func(attempt int, err error, delay time.Duration)

// Executor applies a Policy to units of work.
type Executor struct {
	policy   Policy
	observer Observer
}

// Option configures an Executor.
type Option func(*Executor)

// WithObserver registers a callback invoked before every retry.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor creates an executor for the given policy.
// A nil policy never retries and always aborts.
func NewExecutor(p Policy, opts ...Option) *Executor {
	if p == nil {
		p = Never{}
	}

	e := &Executor{policy: p}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy { return e.policy }

// Execute runs fn until it succeeds or the policy gives up.
// Context cancellation is returned as is and never retried.
func Execute[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		decision := Decide(e.policy, err, attempt)

		switch decision.Action {
		case ActionRetry:
			if e.observer != nil {
				e.observer(attempt, err, decision.Delay)
			}

			if sleepErr := sleep(ctx, decision.Delay); sleepErr != nil {
				return zero, sleepErr
			}
		case ActionContinue, ActionAbort:
			return zero, &ExhaustedError{Action: decision.Action, Attempts: attempt, Err: err}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
