// Package parallel runs independent kernel tasks on a bounded set of goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config controls parallel execution behavior.
type Config struct {
	Workers  int // Maximum goroutines; values < 2 run sequentially.
	MinTasks int // Task count below which work runs on the calling goroutine.
}

// DefaultConfig uses one worker per CPU.
//
// Convolution tasks are coarse (one image and branch each), so even two
// tasks are worth spreading across workers.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MinTasks: 2,
	}
}

// Sequential returns a Config that never spawns goroutines.
func Sequential() Config {
	return Config{Workers: 1}
}

// For executes f(i) for every i in [0, n).
//
// Workers pull indices from a shared counter, so tasks of uneven cost are
// balanced. f must only write to memory owned by task i.
func For(n int, f func(i int), cfg Config) {
	workers := min(cfg.Workers, n)
	if workers < 2 || n < cfg.MinTasks {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				f(i)
			}
		}()
	}
	wg.Wait()
}

// ForGrid executes f(a, b) for every cell of an outer x inner grid.
// Used for the batch x branch loops of grouped kernels.
func ForGrid(outer, inner int, f func(a, b int), cfg Config) {
	For(outer*inner, func(k int) {
		f(k/inner, k%inner)
	}, cfg)
}
