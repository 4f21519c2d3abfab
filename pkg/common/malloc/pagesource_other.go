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

//go:build !linux && !darwin

package malloc

import "unsafe"

// osPageSource on platforms without a wired mmap path bootstraps regions
// from the process's default allocator (a plain Go byte slice, already
// zero-initialized by the runtime), exactly the external collaborator the
// specification calls out of scope for bootstrapping the first page
// reservations. Release is a no-op: the region is reclaimed by the garbage
// collector once every Arena/Pool that referenced it has dropped it.
type osPageSource struct {
	pageSize int
}

func newOSPageSource() PageSource {
	return &osPageSource{pageSize: 4096}
}

func (o *osPageSource) PageSize() int { return o.pageSize }

func (o *osPageSource) Reserve(n int) (*Region, error) {
	if n <= 0 {
		return nil, ErrInvalidArgument
	}
	length := alignUpInt(n, o.pageSize)
	buf := make([]byte, length)
	return &Region{Base: unsafe.Pointer(&buf[0]), Len: length, source: o}, nil
}

func (o *osPageSource) Release(base unsafe.Pointer, length int) error {
	return nil
}
