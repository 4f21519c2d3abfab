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
	"sync/atomic"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedDynamicSlab decorates a *DynamicSlab with the four counters
// the design document's profiling requirement asks for: allocated bytes,
// in-use bytes, allocated object count, and in-use object count. The decorator
// pattern and metric shape are carried over from
// pkg/common/malloc/metrics_allocator.go's MetricsAllocator; unlike that
// generic wrapper over an arbitrary Allocator, this one is specialized to
// DynamicSlab because Free here needs the original size to update the
// gauges, and Palloc's return value alone does not carry it.
type InstrumentedDynamicSlab struct {
	upstream *DynamicSlab

	allocateBytesCounter   prometheus.Counter
	inuseBytesGauge        prometheus.Gauge
	allocateObjectsCounter prometheus.Counter
	inuseObjectsGauge      prometheus.Gauge

	inuseBytes   atomic.Int64
	inuseObjects atomic.Int64
}

// NewInstrumentedDynamicSlab wraps upstream; any of the four collectors may
// be nil to opt out of that particular metric.
func NewInstrumentedDynamicSlab(
	upstream *DynamicSlab,
	allocateBytesCounter prometheus.Counter,
	inuseBytesGauge prometheus.Gauge,
	allocateObjectsCounter prometheus.Counter,
	inuseObjectsGauge prometheus.Gauge,
) *InstrumentedDynamicSlab {
	return &InstrumentedDynamicSlab{
		upstream:               upstream,
		allocateBytesCounter:   allocateBytesCounter,
		inuseBytesGauge:        inuseBytesGauge,
		allocateObjectsCounter: allocateObjectsCounter,
		inuseObjectsGauge:      inuseObjectsGauge,
	}
}

func (m *InstrumentedDynamicSlab) Palloc(n int) unsafe.Pointer {
	ptr := m.upstream.Palloc(n)
	if ptr == nil {
		return nil
	}
	m.recordAlloc(n)
	return ptr
}

func (m *InstrumentedDynamicSlab) Calloc(n int) unsafe.Pointer {
	ptr := m.upstream.Calloc(n)
	if ptr == nil {
		return nil
	}
	m.recordAlloc(n)
	return ptr
}

func (m *InstrumentedDynamicSlab) recordAlloc(n int) {
	if m.allocateBytesCounter != nil {
		m.allocateBytesCounter.Add(float64(n))
	}
	if m.allocateObjectsCounter != nil {
		m.allocateObjectsCounter.Add(1)
	}
	inuse := m.inuseBytes.Add(int64(n))
	if m.inuseBytesGauge != nil {
		m.inuseBytesGauge.Set(float64(inuse))
	}
	objects := m.inuseObjects.Add(1)
	if m.inuseObjectsGauge != nil {
		m.inuseObjectsGauge.Set(float64(objects))
	}
}

func (m *InstrumentedDynamicSlab) Free(ptr unsafe.Pointer, size int) {
	if ptr == nil {
		return
	}
	m.upstream.Free(ptr, size)
	// size <= 0 is a documented no-op on the upstream Free (nothing was
	// freed), so the in-use gauges must not move for it either.
	if size <= 0 {
		return
	}
	inuse := m.inuseBytes.Add(-int64(size))
	if m.inuseBytesGauge != nil {
		m.inuseBytesGauge.Set(float64(inuse))
	}
	objects := m.inuseObjects.Add(-1)
	if m.inuseObjectsGauge != nil {
		m.inuseObjectsGauge.Set(float64(objects))
	}
}

func (m *InstrumentedDynamicSlab) TotalCapacity() int { return m.upstream.TotalCapacity() }
func (m *InstrumentedDynamicSlab) TotalFree() int     { return m.upstream.TotalFree() }
func (m *InstrumentedDynamicSlab) SlabCount() int     { return m.upstream.SlabCount() }
func (m *InstrumentedDynamicSlab) Close() error       { return m.upstream.Close() }
