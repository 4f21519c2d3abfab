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
	"sort"
)

// DefaultSizeClasses is the recommended size-class ladder from the design
// document.
var DefaultSizeClasses = []int{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// defaultBaselineCounts are the per-class baseline block counts a Slab
// built with scale=1.0 allocates. They skew generously toward the small
// classes so that common small-object workloads stay within a single
// slab's first tier before DynamicSlab ever needs to grow (the open
// question the design document leaves unresolved; see DESIGN.md).
var defaultBaselineCounts = []int{4096, 2048, 1024, 512, 256, 128, 64, 32, 16, 8}

// sizeClasses is an ordered, strictly increasing ladder of block sizes plus
// the baseline block count each class gets in a scale=1.0 slab.
type sizeClasses struct {
	sizes    []int
	baseline []int
}

func newSizeClasses(sizes, baseline []int) (*sizeClasses, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("malloc: size classes must be non-empty: %w", ErrInvalidArgument)
	}
	if len(baseline) != len(sizes) {
		return nil, fmt.Errorf("malloc: baseline counts must match size classes: %w", ErrInvalidArgument)
	}
	for i, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("malloc: size classes must be positive: %w", ErrInvalidArgument)
		}
		if i > 0 && s <= sizes[i-1] {
			return nil, fmt.Errorf("malloc: size classes must be strictly increasing: %w", ErrInvalidArgument)
		}
	}
	return &sizeClasses{sizes: sizes, baseline: baseline}, nil
}

// indexFor returns the smallest index i with sizes[i] >= n, or -1 if n is
// non-positive or larger than the largest class.
func (s *sizeClasses) indexFor(n int) int {
	if n <= 0 {
		return -1
	}
	i := sort.Search(len(s.sizes), func(i int) bool { return s.sizes[i] >= n })
	if i == len(s.sizes) {
		return -1
	}
	return i
}

func (s *sizeClasses) sizeAt(i int) int { return s.sizes[i] }

func (s *sizeClasses) baselineAt(i int) int { return s.baseline[i] }

func (s *sizeClasses) count() int { return len(s.sizes) }

func (s *sizeClasses) largest() int { return s.sizes[len(s.sizes)-1] }
