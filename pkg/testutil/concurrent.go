// Package testutil holds helpers shared by package tests.
package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes   int32
	Errors      int32
	Conflicts   int32
	NotFounds   int32
	Transitions int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds + r.Transitions
}

// RunConcurrent starts all goroutines behind a shared gate so they race for
// real, then buckets each outcome. Invalid state transitions are counted
// separately from conflicts.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, notFounds, transitions atomic.Int32
	gate := make(chan struct{})

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-gate
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState), dErrors.HasCode(err, dErrors.CodeInvalidTransition):
				transitions.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}
	close(gate)
	wg.Wait()

	return &ConcurrentResult{
		Successes:   successes.Load(),
		Errors:      errs.Load(),
		Conflicts:   conflicts.Load(),
		NotFounds:   notFounds.Load(),
		Transitions: transitions.Load(),
	}
}

// RunConcurrentCollect executes fn in parallel and returns each goroutine's result by index.
func RunConcurrentCollect[T any](goroutines int, fn func(idx int) (T, error)) ([]T, []error) {
	var wg sync.WaitGroup
	results := make([]T, goroutines)
	errs := make([]error, goroutines)
	gate := make(chan struct{})

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-gate
			results[idx], errs[idx] = fn(idx)
		}(i)
	}
	close(gate)
	wg.Wait()
	return results, errs
}
