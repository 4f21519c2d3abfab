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

package malloc

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Go gives user code no access to OS-thread-local storage, and goroutines
// migrate across Ps, so the design document's "per-thread cache" is
// adapted here as a per-P shard embedded directly in each Slab, sharded by
// the calling P's id the same way pkg/common/malloc/malloc.go shards its
// class pools (runtime_procPin/runtime_procUnpin below is the exact
// go:linkname trick that file uses). Because every Slab owns its own fixed
// array of shards sized at construction, there is no cross-slab registry
// to evict from: a shard's lifetime is the Slab's lifetime, so
// MAX_CACHED_SLABS/LRU eviction from the distilled design has no work left
// to do and is not implemented (see DESIGN.md).
const (
	tlcCapacity  = 128 // C_tlc: per-class-per-shard cache capacity
	refillBatch  = 64  // REFILL_BATCH: blocks moved per pool round-trip
	maxTLCShards = 64  // upper bound on per-Slab shard fan-out
)

//go:linkname runtime_procPin runtime.procPin
func runtime_procPin() int

//go:linkname runtime_procUnpin runtime.procUnpin
func runtime_procUnpin() int

func currentShard(numShards int) int {
	pid := runtime_procPin()
	runtime_procUnpin()
	if pid < 0 {
		pid = -pid
	}
	return pid % numShards
}

// tlcClassShard is one size class's cache within one shard. Fast-path
// alloc/free are plain channel operations; mu only guards the slow-path
// refill/flush round-trip to the backing Pool and the epoch-invalidation
// drain, matching the design document's "locked drain path" for bulk pool
// access.
type tlcClassShard struct {
	epoch atomic.Uint64
	mu    sync.Mutex
	ch    chan unsafe.Pointer
}

func newTLCShards(numShards, numClasses int) [][]tlcClassShard {
	shards := make([][]tlcClassShard, numShards)
	for i := range shards {
		classes := make([]tlcClassShard, numClasses)
		for c := range classes {
			classes[c].ch = make(chan unsafe.Pointer, tlcCapacity)
		}
		shards[i] = classes
	}
	return shards
}

// checkEpoch discards cached entries without returning them to the pool
// when the slab has been reset since this shard was last populated; this
// is the lazy, per-access invalidation the epoch protocol requires.
func (s *tlcClassShard) checkEpoch(current uint64) {
	if s.epoch.Load() == current {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch.Load() == current {
		return
	}
	for {
		select {
		case <-s.ch:
		default:
			s.epoch.Store(current)
			return
		}
	}
}

func (s *tlcClassShard) alloc(currentEpoch uint64, pool *Pool) unsafe.Pointer {
	s.checkEpoch(currentEpoch)

	select {
	case ptr := <-s.ch:
		return ptr
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case ptr := <-s.ch:
		return ptr
	default:
	}

	n := 0
	for n < refillBatch {
		ptr := pool.Alloc()
		if ptr == nil {
			break
		}
		select {
		case s.ch <- ptr:
			n++
		default:
			pool.Free(ptr)
			n = -1
		}
		if n < 0 {
			break
		}
	}
	if n <= 0 {
		return nil
	}

	select {
	case ptr := <-s.ch:
		return ptr
	default:
		return nil
	}
}

// flushAll drains every block currently cached by this shard back into
// pool. Callers are responsible for ensuring no concurrent alloc/free is in
// flight against this shard; it is meant for quiescent-state bookkeeping
// (stats, shutdown), not the hot path.
func (s *tlcClassShard) flushAll(pool *Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case ptr := <-s.ch:
			pool.Free(ptr)
		default:
			return
		}
	}
}

func (s *tlcClassShard) free(currentEpoch uint64, pool *Pool, ptr unsafe.Pointer) {
	s.checkEpoch(currentEpoch)

	select {
	case s.ch <- ptr:
		return
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flushed := 0
	for flushed < refillBatch {
		select {
		case old := <-s.ch:
			pool.Free(old)
			flushed++
		default:
			flushed = refillBatch
		}
	}

	select {
	case s.ch <- ptr:
	default:
		// shard somehow still full; hand the block straight to the pool
		// rather than block.
		pool.Free(ptr)
	}
}
