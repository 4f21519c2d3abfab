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
	"unsafe"

	"github.com/arrowhead-db/slabmem/internal/logutil"
	"go.uber.org/zap"
)

// Arena is a bump allocator over a single page-backed region. It has no
// per-object free, only bulk Reset. An Arena is not safe for concurrent
// use; callers that need a shared bump allocator must serialize access
// themselves, same as the scope-bounded arenas it is modeled on.
type Arena struct {
	region   *Region
	capacity int
	used     int
	dirty    bool
}

// NewArena reserves a region of at least capacity bytes, rounded up to a
// page multiple. On failure (invalid capacity or page-source failure) it
// still returns a non-nil *Arena whose Capacity() is 0, matching the
// "OSFailure leaves the arena in an unusable state" contract: callers can
// keep calling observers on it without a nil check.
func NewArena(capacity int) (*Arena, error) {
	a := &Arena{}
	if capacity <= 0 {
		return a, fmt.Errorf("arena: capacity must be positive: %w", ErrInvalidArgument)
	}
	region, err := defaultPageSource.Reserve(capacity)
	if err != nil {
		return a, fmt.Errorf("arena: %w", ErrOSFailure)
	}
	a.region = region
	a.capacity = region.Len
	logutil.Info("arena created", zap.Int("capacity", a.capacity))
	return a, nil
}

// Alloc returns align_up(n) bytes advanced from the current cursor, or nil
// if n is zero or the request would exceed capacity.
func (a *Arena) Alloc(n int) unsafe.Pointer {
	if n <= 0 || a.region == nil {
		return nil
	}
	aligned := alignUpInt(n, maxAlign)
	if a.used+aligned > a.capacity {
		return nil
	}
	ptr := unsafe.Add(a.region.Base, a.used)
	a.used += aligned
	return ptr
}

// Calloc behaves like Alloc but additionally zeros the returned range.
// Fresh pages are already zero from the page source, so the zero is only
// performed once Reset has been called at least once (after which the
// range may hold bytes left over from before the reset).
func (a *Arena) Calloc(n int) unsafe.Pointer {
	ptr := a.Alloc(n)
	if ptr == nil {
		return nil
	}
	if a.dirty {
		clear(unsafe.Slice((*byte)(ptr), n))
	}
	return ptr
}

// Reset rewinds the cursor to zero. Pointers returned before Reset must
// not be dereferenced afterward.
func (a *Arena) Reset() {
	a.used = 0
	a.dirty = true
}

// Used reports the number of bytes handed out since the last Reset.
func (a *Arena) Used() int { return a.used }

// Capacity reports the total usable byte capacity; zero if construction
// failed.
func (a *Arena) Capacity() int { return a.capacity }

// Close releases the arena's region back to the page source.
func (a *Arena) Close() error {
	return a.region.Release()
}
