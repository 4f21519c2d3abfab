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

// Package malloc supplies a family of composable memory allocators aimed at
// high-throughput fixed- and small-object workloads:
//
//   - Arena, a bump allocator over one page-backed region with no
//     per-object free, only bulk reset.
//   - Pool, a fixed-size block allocator backed by a lock-free free list.
//   - Slab, a size-classed allocator that layers a per-P thread-local
//     cache over one Pool per size class, with epoch-based invalidation
//     on reset.
//   - DynamicSlab, a Slab that grows by prepending additional Slab
//     instances once every existing one is exhausted.
//
// None of these allocators validate misuse (double free, cross-allocator
// free, use after reset); that is left undefined, same as the C allocators
// they are modeled on. Requests above the largest size class are rejected
// rather than satisfied from the Go heap.
package malloc
