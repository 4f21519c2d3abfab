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
	"unsafe"

	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/require"
)

func TestDynamicSlabGrowsWhenFirstSlabExhausted(t *testing.T) {
	d, err := NewDynamicSlab(0.001)
	require.NoError(t, err)
	defer d.Close()

	require.Equal(t, 1, d.SlabCount())

	capacity := d.TotalCapacity()
	allocated := 0
	for allocated < capacity {
		ptr := d.Palloc(64)
		if ptr == nil {
			break
		}
		allocated += 64
	}

	require.Greater(t, d.SlabCount(), 1)
}

func TestDynamicSlabZeroAndNegativeSizeAreNoops(t *testing.T) {
	d, err := NewDynamicSlab(1)
	require.NoError(t, err)
	defer d.Close()

	require.Nil(t, d.Palloc(0))
	require.Nil(t, d.Palloc(-1))
	require.Equal(t, 1, d.SlabCount())
}

func TestDynamicSlabFreeRoutesToOwningSlab(t *testing.T) {
	d, err := NewDynamicSlab(0.001)
	require.NoError(t, err)
	defer d.Close()

	var ptrs []unsafe.Pointer
	for i := 0; i < 200; i++ {
		ptr := d.Palloc(32)
		require.NotNil(t, ptr)
		ptrs = append(ptrs, ptr)
	}
	require.Greater(t, d.SlabCount(), 1)

	for _, ptr := range ptrs {
		d.Free(ptr, 32)
	}

	ptr := d.Palloc(32)
	require.NotNil(t, ptr)
}

func TestDynamicSlabConcurrentGrowth(t *testing.T) {
	defer leaktest.AfterTest(t)()

	d, err := NewDynamicSlab(0.01)
	require.NoError(t, err)
	defer d.Close()

	const goroutines = 16
	const iterations = 500

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				ptr := d.Palloc(64)
				if ptr == nil {
					continue
				}
				d.Free(ptr, 64)
			}
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, d.SlabCount(), 1)
}

func TestDynamicSlabCallocZeroesAcrossGrownSlabs(t *testing.T) {
	d, err := NewDynamicSlab(0.001)
	require.NoError(t, err)
	defer d.Close()

	for i := 0; i < 300; i++ {
		ptr := d.Calloc(32)
		require.NotNil(t, ptr)
		for _, b := range unsafe.Slice((*byte)(ptr), 32) {
			require.Equal(t, byte(0), b)
		}
	}
	require.Greater(t, d.SlabCount(), 1)
}
