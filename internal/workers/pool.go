package workers

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one work item
type Result[R any] struct {
	Value R
	Err   error
}

// PanicError wraps a panic raised by a work item
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work item panicked: %v", e.Value)
}

// Run calls fn once for every item with at most limit calls in flight and
// returns when all items are done. Results are stored at the index of their
// item. Workers pull the next unclaimed index from a shared cursor, so fast
// workers take more items than slow ones. An error or panic in one item never
// stops the others. Once ctx is cancelled, unclaimed items get ctx.Err().
func Run[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	var cursor atomic.Int64
	var g errgroup.Group

	for w := 0; w < limit; w++ {
		g.Go(func() error {
			for {
				idx := int(cursor.Add(1) - 1)
				if idx >= len(items) {
					return nil
				}
				if err := ctx.Err(); err != nil {
					results[idx] = Result[R]{Err: err}
					continue
				}
				results[idx] = runOne(ctx, items[idx], fn)
			}
		})
	}

	_ = g.Wait()
	return results
}

func runOne[T, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[R]{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	v, err := fn(ctx, item)
	return Result[R]{Value: v, Err: err}
}

// Errors returns the non-nil errors in results
func Errors[R any](results []Result[R]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
