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
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/arrowhead-db/slabmem/internal/logutil"
	"go.uber.org/zap"
)

// Slab is a size-classed allocator: one Pool per size class, each fronted
// by a per-P thread-local cache (see tlc.go). Alloc rounds a request up to
// the smallest class that fits it and returns nil for requests larger than
// the largest class, matching a fixed-tier slab allocator's contract of
// never falling back to a general heap.
type Slab struct {
	classes   *sizeClasses
	pools     []*Pool
	shards    [][]tlcClassShard
	numShards int
	epoch     atomic.Uint64
	scale     float64
}

// NewSlab builds a Slab using DefaultSizeClasses, with every class's
// baseline block count multiplied by scale (rounded up). scale must be
// positive.
func NewSlab(scale float64) (*Slab, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("slab: scale must be positive: %w", ErrInvalidArgument)
	}
	classes, err := newSizeClasses(DefaultSizeClasses, defaultBaselineCounts)
	if err != nil {
		return nil, err
	}

	numShards := runtime.GOMAXPROCS(0)
	if numShards < 1 {
		numShards = 1
	}
	if numShards > maxTLCShards {
		numShards = maxTLCShards
	}

	s := &Slab{
		classes:   classes,
		pools:     make([]*Pool, classes.count()),
		numShards: numShards,
		scale:     scale,
	}

	for i := 0; i < classes.count(); i++ {
		count := int(float64(classes.baselineAt(i))*scale + 0.999999)
		if count < 1 {
			count = 1
		}
		pool, err := NewPool(classes.sizeAt(i), count)
		if err != nil {
			for j := 0; j < i; j++ {
				s.pools[j].Close()
			}
			return nil, fmt.Errorf("slab: class %d: %w", classes.sizeAt(i), err)
		}
		s.pools[i] = pool
	}

	s.shards = newTLCShards(numShards, classes.count())
	logutil.Info("slab created", zap.Float64("scale", scale), zap.Int("classes", classes.count()), zap.Int("shards", numShards))
	return s, nil
}

// Alloc returns a block from the smallest size class that fits n bytes, or
// nil if n is non-positive or exceeds the largest class.
func (s *Slab) Alloc(n int) unsafe.Pointer {
	idx := s.classes.indexFor(n)
	if idx < 0 {
		return nil
	}
	shard := &s.shards[currentShard(s.numShards)][idx]
	return shard.alloc(s.epoch.Load(), s.pools[idx])
}

// Calloc behaves like Alloc but zeros the returned block's first n bytes.
func (s *Slab) Calloc(n int) unsafe.Pointer {
	ptr := s.Alloc(n)
	if ptr == nil {
		return nil
	}
	clear(unsafe.Slice((*byte)(ptr), n))
	return ptr
}

// Free returns ptr to the size class it was allocated from. size must be
// the same value originally passed to Alloc/Calloc; Free picks the class
// from size and does not infer it from ptr's address.
func (s *Slab) Free(ptr unsafe.Pointer, size int) {
	if ptr == nil {
		return
	}
	idx := s.classes.indexFor(size)
	if idx < 0 {
		return
	}
	shard := &s.shards[currentShard(s.numShards)][idx]
	shard.free(s.epoch.Load(), s.pools[idx], ptr)
}

// Owns reports whether ptr was produced by one of this slab's pools.
func (s *Slab) Owns(ptr unsafe.Pointer) bool {
	for _, p := range s.pools {
		if p.Owns(ptr) {
			return true
		}
	}
	return false
}

// Reset invalidates every outstanding pointer this slab has ever handed
// out and rebuilds every pool's free list. Thread-local caches are not
// touched directly; each shard discards its stale entries lazily the next
// time it is accessed, once it observes the bumped epoch.
func (s *Slab) Reset() {
	s.epoch.Add(1)
	for _, p := range s.pools {
		p.reinit()
	}
}

// TotalCapacity reports the sum of every size class's pool capacity, in
// bytes.
func (s *Slab) TotalCapacity() int {
	total := 0
	for _, p := range s.pools {
		total += p.Capacity()
	}
	return total
}

// TotalFree reports the sum of every size class's free bytes visible in the
// pools' own free lists, excluding blocks currently parked in a shard's
// thread-local cache. Balanced alloc/free traffic only converges
// total_free() back to total_capacity() once every shard has been flushed;
// see FlushCaches.
func (s *Slab) TotalFree() int {
	total := 0
	for _, p := range s.pools {
		total += p.FreeSpace()
	}
	return total
}

// FlushCaches drains every shard's cached blocks, across every size class,
// back into their owning pools. It is the synchronization point that makes
// total_free() == total_capacity() observable again after balanced
// alloc/free traffic: TLC entries amortize pool contention on the hot
// path precisely by not doing this on every Free.
func (s *Slab) FlushCaches() {
	for classIdx, p := range s.pools {
		for shardIdx := range s.shards {
			s.shards[shardIdx][classIdx].flushAll(p)
		}
	}
}

// Close releases every size class's pool back to the page source.
func (s *Slab) Close() error {
	var firstErr error
	for _, p := range s.pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
