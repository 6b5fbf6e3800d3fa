package gmm

import (
	"runtime"
	"sync"
)

// minPixelsPerWorker keeps goroutine overhead below the per-pixel work.
const minPixelsPerWorker = 4096

// parallel splits [0, n) into contiguous partitions and runs fn on each, returning
// once every partition is done. Small inputs run inline on the caller's goroutine.
//
// Arguments:
//   - n: The number of pixels to process.
//   - workers: The requested number of goroutines; 0 means GOMAXPROCS.
//   - fn: Processes the half-open pixel range [start, end).
func parallel(n, workers int, fn func(start, end int)) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if limit := n / minPixelsPerWorker; workers > limit {
		workers = limit
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	partSize := n / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		start := i * partSize
		end := start + partSize
		// Last partition takes the remainder.
		if i == workers-1 {
			end = n
		}
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
