// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resilience

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one fanned-out unit.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the unit succeeded.
func (o Outcome[T]) OK() bool { return o.Err == nil }

// FanOut runs fn for every index in [0, n) concurrently and waits for all
// of them.
//
// # Description
//
// A failing unit never cancels its siblings: each unit's error is captured
// in its Outcome and the group itself always succeeds. Outcomes are indexed
// by input position, so callers see dispatch order regardless of which
// unit finished first. A panicking unit is reported as an error.
//
// # Inputs
//
//   - ctx: Passed to every unit. FanOut does not cancel it.
//   - n: Number of units.
//   - limit: Maximum units in flight; <= 0 means unbounded.
//   - fn: The unit body.
//
// # Outputs
//
//   - []Outcome[T]: One outcome per index.
func FanOut[T any](ctx context.Context, n, limit int, fn func(ctx context.Context, i int) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], n)

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = Outcome[T]{Err: fmt.Errorf("unit %d panicked: %v", i, r)}
				}
			}()
			v, err := fn(ctx, i)
			outcomes[i] = Outcome[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
