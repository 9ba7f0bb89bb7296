// Package harness runs timed, repeated experiments: it launches workers,
// waits for all of them, and collects their results.
package harness

import (
	"context"
	stderrors "errors"
	"sync"
	"time"
)

// Task is one unit of concurrent work in an episode.
type Task func(ctx context.Context) error

// Episode starts every task at once, waits for all of them to return, and
// reports the elapsed wall time. Task errors are joined in task order; a
// failing task does not stop its siblings.
func Episode(ctx context.Context, tasks []Task) (time.Duration, error) {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup

	start := time.Now()
	for i, task := range tasks {
		wg.Add(1)
		go func(idx int, run Task) {
			defer wg.Done()
			errs[idx] = run(ctx)
		}(i, task)
	}
	wg.Wait()
	elapsed := time.Since(start)

	return elapsed, stderrors.Join(errs...)
}

// Share splits total into n parts whose sizes differ by at most one.
func Share(total, n int) []int {
	if n <= 0 {
		return nil
	}
	parts := make([]int, n)
	for i := range parts {
		parts[i] = total / n
		if i < total%n {
			parts[i]++
		}
	}
	return parts
}

// stopRequested reports whether ctx is done or stop was closed.
func stopRequested(ctx context.Context, stop <-chan struct{}) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
