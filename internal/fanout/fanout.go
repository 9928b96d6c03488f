// Package fanout runs independent branches concurrently and collects every
// outcome, successful or not.
package fanout

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
)

// Result is the outcome of one branch.
type Result[T any] struct {
	Value T
	Err   error
}

// All calls fn once per index in [0, n) with up to n branches in flight and
// waits for all of them to settle. A failing or panicking branch never
// cancels its siblings. Results are returned in index order.
func All[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error)) []Result[T] {
	if n <= 0 {
		return nil
	}

	results := make([]Result[T], n)
	settled := make([]bool, n)

	pool := pond.NewPool(n)
	group := pool.NewGroupContext(ctx)

	for i := range n {
		group.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result[T]{Err: fmt.Errorf("branch %d panicked: %v", i, r)}
				}
				settled[i] = true
			}()

			v, err := fn(ctx, i)
			results[i] = Result[T]{Value: v, Err: err}
		})
	}

	waitErr := group.Wait()
	pool.StopAndWait()

	// Branches skipped because ctx ended before they started.
	for i := range results {
		if !settled[i] {
			err := waitErr
			if err == nil {
				err = ctx.Err()
			}
			if err == nil {
				err = context.Canceled
			}
			results[i] = Result[T]{Err: err}
		}
	}

	return results
}

// Values returns the successful values in index order.
func Values[T any](results []Result[T]) []T {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}
