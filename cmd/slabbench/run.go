// Copyright 2024 Slabmem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/panjf2000/ants/v2"

	"github.com/arrowhead-db/slabmem/pkg/common/malloc"
)

// runResult holds the wall-clock result of one benchmark pass.
type runResult struct {
	label     string
	elapsed   time.Duration
	allocs    int
}

// runSlabBenchmark drives cfg.Iterations alloc/free round-trips per worker
// through a shared *malloc.DynamicSlab, fanned out over an ants.Pool the
// same way pkg/frontend/data_branch.go fans branch-diff work across a
// worker pool: Submit a closure per unit of work, have it signal a shared
// WaitGroup on completion, then Wait for the whole batch.
func runSlabBenchmark(cfg benchConfig) (runResult, error) {
	d, err := malloc.NewDynamicSlab(cfg.Scale)
	if err != nil {
		return runResult{}, fmt.Errorf("slabbench: %w", err)
	}
	defer d.Close()

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return runResult{}, fmt.Errorf("slabbench: creating worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			for i := 0; i < cfg.Iterations; i++ {
				ptr := d.Palloc(cfg.AllocSize)
				if ptr == nil {
					continue
				}
				d.Free(ptr, cfg.AllocSize)
			}
		})
		if err != nil {
			wg.Done()
			return runResult{}, fmt.Errorf("slabbench: submitting worker: %w", err)
		}
	}
	wg.Wait()

	return runResult{
		label:   "slab",
		elapsed: time.Since(start),
		allocs:  cfg.Workers * cfg.Iterations,
	}, nil
}

// runPlainGoBenchmark is the comparison baseline: the same workload driven
// through make([]byte, n) and the runtime GC instead of the slab
// allocators, so slabbench's output makes the tradeoff visible.
func runPlainGoBenchmark(cfg benchConfig) (runResult, error) {
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return runResult{}, fmt.Errorf("slabbench: creating worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			for i := 0; i < cfg.Iterations; i++ {
				buf := make([]byte, cfg.AllocSize)
				_ = unsafe.Pointer(&buf[0])
			}
		})
		if err != nil {
			wg.Done()
			return runResult{}, fmt.Errorf("slabbench: submitting worker: %w", err)
		}
	}
	wg.Wait()

	return runResult{
		label:   "plain-go",
		elapsed: time.Since(start),
		allocs:  cfg.Workers * cfg.Iterations,
	}, nil
}
