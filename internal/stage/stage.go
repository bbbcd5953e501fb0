// Package stage expresses per-item pipeline work as a transform followed by a
// sink, with an optional retry wrapper around either step.
package stage

import (
	"context"
	"fmt"
	"time"
)

// Func is one step of a stage.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

// Stage transforms one item and hands the result to its sink.
type Stage[In, Out any] struct {
	Transform Func[In, Out]
	Sink      func(ctx context.Context, out Out) error
}

// Process runs the transform then the sink. A transform error skips the sink.
func (s Stage[In, Out]) Process(ctx context.Context, in In) (Out, error) {
	out, err := s.Transform(ctx, in)
	if err != nil {
		var zero Out
		return zero, err
	}
	if s.Sink != nil {
		if err := s.Sink(ctx, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Policy controls Retry. MaxAttempts of 1 disables retrying.
type Policy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(err error) bool
}

// Delay returns how long to wait before the given attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := float64(p.InitialDelay)
	for i := 2; i < attempt; i++ {
		delay *= p.BackoffMultiplier
	}
	return time.Duration(delay)
}

// Retry wraps fn so that failed calls are repeated according to p.
func Retry[In, Out any](p Policy, fn Func[In, Out]) Func[In, Out] {
	attempts := max(p.MaxAttempts, 1)
	return func(ctx context.Context, in In) (Out, error) {
		var (
			out Out
			err error
		)
		for attempt := 1; attempt <= attempts; attempt++ {
			if d := p.Delay(attempt); d > 0 {
				timer := time.NewTimer(d)
				select {
				case <-ctx.Done():
					timer.Stop()
					return out, ctx.Err()
				case <-timer.C:
				}
			}

			out, err = fn(ctx, in)
			if err == nil {
				return out, nil
			}
			if p.Retryable != nil && !p.Retryable(err) {
				return out, err
			}
		}
		if attempts > 1 {
			return out, fmt.Errorf("after %d attempts: %w", attempts, err)
		}
		return out, err
	}
}
