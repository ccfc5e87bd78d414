// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resilience wraps external calls with bounded retry, decodes model
// replies into validated values, and fans independent calls out
// concurrently while isolating their failures.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// =============================================================================
// Policy
// =============================================================================

// Policy configures retry with exponential backoff.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the wait before the first retry. Doubles per attempt.
	// Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps every wait, jitter included.
	// Default: 10s
	MaxDelay time.Duration

	// MaxJitter is the upper bound of the random delay added to each wait.
	// Default: 500ms
	MaxJitter time.Duration

	// OnRetry is called before each wait with the failed attempt number,
	// its error and the delay about to be slept. Optional.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep waits for d or until ctx is done. Defaults to a timer select.
	Sleep func(ctx context.Context, d time.Duration) error

	// Jitter returns a value in [0, max). Defaults to math/rand.
	Jitter func(max time.Duration) time.Duration
}

// DefaultPolicy returns the standard retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    10 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// SingleAttempt returns a policy that never retries.
func SingleAttempt() Policy {
	p := DefaultPolicy()
	p.MaxAttempts = 1
	return p
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Jitter == nil {
		p.Jitter = randomJitter
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-based):
// min(BaseDelay * 2^(attempt-1) + jitter, MaxDelay).
func (p Policy) Delay(attempt int, jitter time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	d += jitter
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// =============================================================================
// Errors
// =============================================================================

// TaskFailure is returned when a unit of work exhausts its attempts.
type TaskFailure struct {
	Attempts int
	Err      error
}

func (e *TaskFailure) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TaskFailure) Unwrap() error { return e.Err }

// permanentError marks an error that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Invoke stops retrying immediately.
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

// =============================================================================
// Invoke
// =============================================================================

// Unit is one attempt at a unit of work. attempt is 1-based.
type Unit[T any] func(ctx context.Context, attempt int) (T, error)

// Invoke runs unit until it succeeds or the policy is exhausted.
//
// # Description
//
// A successful attempt returns at once with no delay. A failed attempt
// with attempts remaining calls OnRetry and then sleeps for Policy.Delay
// before the next attempt. Errors marked Permanent stop retrying.
//
// # Outputs
//
//   - T: The value from the successful attempt.
//   - error: *TaskFailure wrapping the last error once attempts run out,
//     or the context error if ctx ends first.
//
// # Thread Safety
//
// Invoke holds no shared state. Concurrent calls are independent.
func Invoke[T any](ctx context.Context, policy Policy, unit Unit[T]) (T, error) {
	var zero T
	p := policy.withDefaults()

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		attempts = attempt
		v, err := unit(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if IsPermanent(err) || attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt, p.Jitter(p.MaxJitter))
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, &TaskFailure{Attempts: attempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
