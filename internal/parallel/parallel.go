// Package parallel runs data-parallel loops over receivers.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultWorkers is the worker count for callers that leave it unset.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// For calls body(worker, i) for every i in [0, n). Items are split into
// contiguous chunks, one per worker, so worker w always sees the same items
// for the same n and worker count. A failing item stops its own chunk and
// tells the other workers to stop early; For returns only after every
// worker has drained, with the error of the lowest failing item observed.
//
// workers <= 1 runs inline on the calling goroutine with worker 0.
func For(workers, n int, body func(worker, i int) error) error {
	if n <= 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := body(0, i); err != nil {
				return err
			}
		}
		return nil
	}

	type failure struct {
		idx int
		err error
	}
	failures := make([]failure, workers)
	var stop atomic.Bool

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		go func(w, lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if stop.Load() {
					return
				}
				if err := body(w, i); err != nil {
					failures[w] = failure{idx: i, err: err}
					stop.Store(true)
					return
				}
			}
		}(w, lo, hi)
	}
	wg.Wait()

	var first *failure
	for w := range failures {
		f := &failures[w]
		if f.err != nil && (first == nil || f.idx < first.idx) {
			first = f
		}
	}
	if first != nil {
		return first.err
	}
	return nil
}

// Chunk returns the item range worker w handles for a loop of n items.
func Chunk(workers, n, w int) (lo, hi int) {
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		if w == 0 {
			return 0, n
		}
		return 0, 0
	}
	chunk := (n + workers - 1) / workers
	lo = w * chunk
	hi = lo + chunk
	if lo > n {
		lo = n
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}
