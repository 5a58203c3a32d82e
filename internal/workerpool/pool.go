// Package workerpool runs a function over a slice with a fixed number of
// worker goroutines.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Size returns the worker count for the given number of CPU cores.
// Small machines keep half their cores free, larger ones keep roughly a
// fifth, and there is always at least one worker.
func Size(cores int) int {
	var n int
	switch {
	case cores <= 2:
		n = cores / 2
	case cores < 8:
		n = cores * 3 / 4
	default:
		n = cores * 4 / 5
	}
	return max(1, n)
}

// PanicError is a panic recovered from a unit of work.
type PanicError struct {
	Index int
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("unit %d panicked: %v", e.Index, e.Value)
}

// Run calls fn once per item from workers goroutines and waits for all of
// them. fn receives the item's position in items; completion order is not
// defined. Items not yet started when ctx is done are skipped. A panic in fn
// is recovered at the unit boundary and the remaining units keep running;
// all recovered panics are returned as one joined error.
func Run[T any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, index int, item T)) error {
	if len(items) == 0 {
		return nil
	}
	workers = max(1, min(workers, len(items)))

	indexes := make(chan int, workers)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					continue
				}
				if err := runUnit(ctx, i, items[i], fn); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for i := range items {
		select {
		case <-ctx.Done():
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	return errors.Join(errs...)
}

func runUnit[T any](ctx context.Context, index int, item T, fn func(ctx context.Context, index int, item T)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Index: index, Value: r, Stack: debug.Stack()}
		}
	}()
	fn(ctx, index, item)
	return nil
}
