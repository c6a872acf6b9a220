package pool

import (
	"context"
	"sync"
)

// WorkerFunc defines the function signature for a worker that processes an item and may return an error.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// Result pairs an item with the error its worker returned.
type Result[T any] struct {
	Item T
	Err  error
}

// Collect runs workerFunc over items with numWorkers goroutines and reports
// every item in input order. Items skipped because ctx was cancelled carry ctx.Err().
func Collect[T any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T]) []Result[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	results := make([]Result[T], len(items))
	for i, item := range items {
		results[i].Item = item
	}

	var wg sync.WaitGroup
	taskChan := make(chan int, numWorkers)
	done := make([]bool, len(items))

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskChan {
				select {
				case <-ctx.Done():
					continue
				default:
					results[idx].Err = workerFunc(ctx, items[idx])
					done[idx] = true
				}
			}
		}()
	}

OUT:
	for i := range items {
		select {
		case taskChan <- i:
		case <-ctx.Done():
			// Stop feeding tasks if the context is cancelled
			break OUT
		}
	}
	close(taskChan)
	wg.Wait()

	for i := range results {
		if !done[i] {
			results[i].Err = ctx.Err()
		}
	}
	return results
}
