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

import "errors"

// ErrInvalidArgument is returned by constructors given a nonsensical
// parameter (zero/negative capacity or scale, a block size smaller than a
// pointer). It is never returned by Alloc/Free; those signal failure with a
// nil unsafe.Pointer instead, per the allocators' null-return contract.
var ErrInvalidArgument = errors.New("malloc: invalid argument")

// ErrOSFailure is returned when the page source could not reserve memory.
// When NewArena or NewPool fails with ErrOSFailure the returned allocator is
// left in a zero-capacity, permanently unusable state; NewSlab and
// NewDynamicSlab return a nil allocator instead.
var ErrOSFailure = errors.New("malloc: page reservation failed")
