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

//go:build linux || darwin

package malloc

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/arrowhead-db/slabmem/internal/logutil"
	"go.uber.org/zap"
)

// osPageSource reserves memory straight from the kernel via anonymous
// mmap. MAP_ANONYMOUS pages are zero-filled by the kernel, satisfying the
// "zero-initialized" part of the PageSource contract for free.
type osPageSource struct {
	pageSize int
}

func newOSPageSource() PageSource {
	return &osPageSource{pageSize: unix.Getpagesize()}
}

func (o *osPageSource) PageSize() int { return o.pageSize }

func (o *osPageSource) Reserve(n int) (*Region, error) {
	if n <= 0 {
		return nil, ErrInvalidArgument
	}
	length := alignUpInt(n, o.pageSize)
	b, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		logutil.Error("malloc: mmap reservation failed", zap.Int("bytes", length), zap.Error(err))
		return nil, err
	}
	return &Region{Base: unsafe.Pointer(&b[0]), Len: length, source: o}, nil
}

func (o *osPageSource) Release(base unsafe.Pointer, length int) error {
	if base == nil || length <= 0 {
		return nil
	}
	return unix.Munmap(unsafe.Slice((*byte)(base), length))
}
