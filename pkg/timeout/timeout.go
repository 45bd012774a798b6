// Package timeout bounds how long a caller waits for an operation.
//
// The guard does not cancel the operation it wraps: when the deadline fires
// the caller gets an *Error back while the operation keeps running in its own
// goroutine. A timed-out write therefore has an unknown outcome and must not
// be treated as "did not happen".
package timeout

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
)

// ErrTimeout matches any *Error via errors.Is.
var ErrTimeout = apperrors.ErrTimeout

// Error is returned when an operation does not finish within its deadline.
type Error struct {
	Operation string
	Deadline  time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s timed out after %dms", e.Operation, e.Deadline.Milliseconds())
}

func (e *Error) Unwrap() error {
	return ErrTimeout
}

type result[T any] struct {
	val T
	err error
}

// Do runs fn and returns its result, or an *Error if fn has not returned
// within deadline. A non-positive deadline waits for fn unconditionally.
// If ctx is done first, ctx.Err() is returned.
func Do[T any](ctx context.Context, operation string, deadline time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if deadline <= 0 {
		return fn(ctx)
	}

	// Buffered so a late result never blocks the abandoned goroutine.
	ch := make(chan result[T], 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- result[T]{err: fmt.Errorf("%s panicked: %v", operation, rec)}
			}
		}()
		v, err := fn(ctx)
		ch <- result[T]{val: v, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-timer.C:
		return zero, &Error{Operation: operation, Deadline: deadline}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Run is Do for operations that only return an error.
func Run(ctx context.Context, operation string, deadline time.Duration, fn func(context.Context) error) error {
	_, err := Do(ctx, operation, deadline, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
