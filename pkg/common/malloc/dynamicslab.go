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
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/arrowhead-db/slabmem/internal/logutil"
	"go.uber.org/zap"
)

// slabNode is one link in DynamicSlab's grow-only chain. next is written
// exactly once, by the goroutine that prepends the node, before the node is
// published via DynamicSlab.head; every other goroutine only ever reads it.
type slabNode struct {
	slab *Slab
	next atomic.Pointer[slabNode]
}

// DynamicSlab wraps an open-ended chain of Slabs that share one size-class
// ladder, growing by prepending a fresh Slab when every existing one is
// exhausted. Traversal is lock-free; growth is serialized by growMu so that
// concurrent allocators racing to grow do not reserve redundant slabs.
type DynamicSlab struct {
	head   atomic.Pointer[slabNode]
	growMu sync.Mutex
	count  atomic.Int64
	scale  float64
}

// NewDynamicSlab eagerly creates one backing Slab with the given scale.
func NewDynamicSlab(scale float64) (*DynamicSlab, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("dynamicslab: scale must be positive: %w", ErrInvalidArgument)
	}
	slab, err := NewSlab(scale)
	if err != nil {
		return nil, err
	}
	d := &DynamicSlab{scale: scale}
	node := &slabNode{slab: slab}
	d.head.Store(node)
	d.count.Store(1)
	return d, nil
}

// Palloc satisfies n bytes from the first existing slab with room, growing
// by one fresh slab if every existing slab is exhausted. A negative size or
// a size larger than the largest size class is a no-op that returns nil,
// matching the distilled design's size_t(-1) sentinel handling.
func (d *DynamicSlab) Palloc(n int) unsafe.Pointer {
	if n <= 0 || d.head.Load().slab.classes.indexFor(n) < 0 {
		return nil
	}
	for node := d.head.Load(); node != nil; node = node.next.Load() {
		if ptr := node.slab.Alloc(n); ptr != nil {
			return ptr
		}
	}
	return d.growAndAlloc(n)
}

// Calloc behaves like Palloc but zeros the returned block. All slabs in the
// chain share the same size-class ladder, so the zero length only needs the
// head slab's classes to resolve the actual block size.
func (d *DynamicSlab) Calloc(n int) unsafe.Pointer {
	ptr := d.Palloc(n)
	if ptr == nil {
		return nil
	}
	classes := d.head.Load().slab.classes
	clear(unsafe.Slice((*byte)(ptr), classes.sizeAt(classes.indexFor(n))))
	return ptr
}

func (d *DynamicSlab) growAndAlloc(n int) unsafe.Pointer {
	d.growMu.Lock()
	defer d.growMu.Unlock()

	// Another goroutine may have grown the chain while we waited for the
	// lock; retry against the now-current head before reserving more
	// memory.
	for node := d.head.Load(); node != nil; node = node.next.Load() {
		if ptr := node.slab.Alloc(n); ptr != nil {
			return ptr
		}
	}

	slab, err := NewSlab(d.scale)
	if err != nil {
		logutil.Error("dynamic slab failed to grow", zap.Error(err))
		return nil
	}
	newNode := &slabNode{slab: slab}
	newNode.next.Store(d.head.Load())
	d.head.Store(newNode)
	total := d.count.Add(1)
	logutil.Info("dynamic slab grew", zap.Int64("slab_count", total))

	return slab.Alloc(n)
}

// Free routes ptr back to whichever slab in the chain owns it. size must
// match the value originally passed to Palloc/Calloc.
func (d *DynamicSlab) Free(ptr unsafe.Pointer, size int) {
	if ptr == nil {
		return
	}
	for node := d.head.Load(); node != nil; node = node.next.Load() {
		if node.slab.Owns(ptr) {
			node.slab.Free(ptr, size)
			return
		}
	}
}

// TotalCapacity sums every slab's capacity across the whole chain.
func (d *DynamicSlab) TotalCapacity() int {
	total := 0
	for node := d.head.Load(); node != nil; node = node.next.Load() {
		total += node.slab.TotalCapacity()
	}
	return total
}

// TotalFree sums every slab's free space across the whole chain.
func (d *DynamicSlab) TotalFree() int {
	total := 0
	for node := d.head.Load(); node != nil; node = node.next.Load() {
		total += node.slab.TotalFree()
	}
	return total
}

// SlabCount reports how many slabs the chain currently holds.
func (d *DynamicSlab) SlabCount() int {
	return int(d.count.Load())
}

// Close releases every slab in the chain back to the page source.
func (d *DynamicSlab) Close() error {
	var firstErr error
	for node := d.head.Load(); node != nil; node = node.next.Load() {
		if err := node.slab.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
