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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAllocExhaustsThenReturnsNil(t *testing.T) {
	p, err := NewPool(16, 4)
	require.NoError(t, err)
	defer p.Close()

	seen := map[uintptr]bool{}
	for i := 0; i < 4; i++ {
		ptr := p.Alloc()
		require.NotNil(t, ptr)
		require.False(t, seen[uintptr(ptr)])
		seen[uintptr(ptr)] = true
	}
	require.Nil(t, p.Alloc())
}

func TestPoolFreeReturnsBlockToList(t *testing.T) {
	p, err := NewPool(16, 2)
	require.NoError(t, err)
	defer p.Close()

	a := p.Alloc()
	b := p.Alloc()
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.Nil(t, p.Alloc())

	p.Free(a)
	c := p.Alloc()
	require.Equal(t, a, c)
}

func TestPoolOwns(t *testing.T) {
	p, err := NewPool(16, 4)
	require.NoError(t, err)
	defer p.Close()

	ptr := p.Alloc()
	require.True(t, p.Owns(ptr))
	require.False(t, p.Owns(nil))

	other, err := NewPool(16, 4)
	require.NoError(t, err)
	defer other.Close()
	require.False(t, p.Owns(other.Alloc()))
}

func TestPoolConcurrentAllocFreeNeverDoubleIssues(t *testing.T) {
	const blockCount = 256
	p, err := NewPool(16, blockCount)
	require.NoError(t, err)
	defer p.Close()

	var mu sync.Mutex
	outstanding := map[uintptr]bool{}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				ptr := p.Alloc()
				if ptr == nil {
					continue
				}
				key := uintptr(ptr)
				mu.Lock()
				require.False(t, outstanding[key])
				outstanding[key] = true
				mu.Unlock()

				mu.Lock()
				delete(outstanding, key)
				mu.Unlock()
				p.Free(ptr)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, blockCount, p.FreeSpace()/p.blockSize)
}

func TestPoolReinitRestoresFullFreeList(t *testing.T) {
	p, err := NewPool(16, 8)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 8; i++ {
		require.NotNil(t, p.Alloc())
	}
	require.Nil(t, p.Alloc())

	p.reinit()
	require.Equal(t, 8*16, p.FreeSpace())
}

func TestPoolRejectsBlockSizeSmallerThanPointer(t *testing.T) {
	_, err := NewPool(1, 4)
	require.Error(t, err)
}
