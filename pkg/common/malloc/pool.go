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
	"sync/atomic"
	"unsafe"
)

// pointerSize is sizeof(pointer) on the target platform; blocks must be at
// least this big to hold the intrusive free-list link.
const pointerSize = int(unsafe.Sizeof(uintptr(0)))

// Pool is a fixed-size block allocator. It reserves one contiguous region
// at construction, carves it into blockCount blocks of blockSize bytes
// each, and threads a lock-free Treiber-stack free list through them. The
// link for a free block lives in the block's own first pointerSize bytes,
// so freed blocks never touch the heap or the page source again.
type Pool struct {
	region     *Region
	blockSize  int
	blockCount int
	head       atomic.Pointer[byte]
	freeCount  atomic.Int64
}

// NewPool reserves blockSize*blockCount bytes and populates the free list
// so that the first Alloc returns the lowest-addressed block.
func NewPool(blockSize, blockCount int) (*Pool, error) {
	p := &Pool{}
	if blockSize < pointerSize || blockCount <= 0 {
		return p, fmt.Errorf("pool: blockSize must be >= %d and blockCount > 0: %w", pointerSize, ErrInvalidArgument)
	}
	region, err := defaultPageSource.Reserve(blockSize * blockCount)
	if err != nil {
		return p, fmt.Errorf("pool: %w", ErrOSFailure)
	}
	p.region = region
	p.blockSize = blockSize
	p.blockCount = blockCount
	p.reinit()
	return p, nil
}

func (p *Pool) blockAt(i int) unsafe.Pointer {
	return unsafe.Add(p.region.Base, i*p.blockSize)
}

// reinit rebuilds the free list from scratch, in the same deterministic
// last-to-first push order NewPool uses, so that a post-reinit Alloc again
// returns the lowest-addressed block first. It is used both by the
// constructor and by Slab.Reset.
func (p *Pool) reinit() {
	p.head.Store(nil)
	p.freeCount.Store(0)
	for i := p.blockCount - 1; i >= 0; i-- {
		p.push(p.blockAt(i))
	}
}

func (p *Pool) push(ptr unsafe.Pointer) {
	node := (*byte)(ptr)
	for {
		old := p.head.Load()
		*(*unsafe.Pointer)(ptr) = unsafe.Pointer(old)
		if p.head.CompareAndSwap(old, node) {
			p.freeCount.Add(1)
			return
		}
	}
}

// Alloc pops the head of the free list, returning nil if it is empty.
func (p *Pool) Alloc() unsafe.Pointer {
	for {
		old := p.head.Load()
		if old == nil {
			return nil
		}
		next := *(*unsafe.Pointer)(unsafe.Pointer(old))
		if p.head.CompareAndSwap(old, (*byte)(next)) {
			p.freeCount.Add(-1)
			return unsafe.Pointer(old)
		}
	}
}

// Free pushes ptr back onto the free list. Freeing a pointer this pool did
// not produce, or that is already free, is undefined behavior: the pool
// does not validate ownership.
func (p *Pool) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	p.push(ptr)
}

// Owns reports whether ptr lies within this pool's region at a block
// boundary.
func (p *Pool) Owns(ptr unsafe.Pointer) bool {
	if p.region == nil || ptr == nil {
		return false
	}
	base := uintptr(p.region.Base)
	addr := uintptr(ptr)
	regionLen := uintptr(p.blockSize * p.blockCount)
	if addr < base || addr >= base+regionLen {
		return false
	}
	return (addr-base)%uintptr(p.blockSize) == 0
}

// FreeSpace reports the number of bytes currently available for Alloc.
func (p *Pool) FreeSpace() int {
	return int(p.freeCount.Load()) * p.blockSize
}

// Capacity reports the pool's total byte capacity.
func (p *Pool) Capacity() int {
	return p.blockCount * p.blockSize
}

// Close releases the pool's region back to the page source.
func (p *Pool) Close() error {
	return p.region.Release()
}
