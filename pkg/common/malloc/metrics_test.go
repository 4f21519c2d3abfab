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
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestInstrumentedDynamicSlabTracksInuseCounts(t *testing.T) {
	d, err := NewDynamicSlab(1)
	require.NoError(t, err)
	defer d.Close()

	allocBytes := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_alloc_bytes"})
	inuseBytes := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_inuse_bytes"})
	allocObjects := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_alloc_objects"})
	inuseObjects := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_inuse_objects"})

	m := NewInstrumentedDynamicSlab(d, allocBytes, inuseBytes, allocObjects, inuseObjects)

	ptr := m.Palloc(64)
	require.NotNil(t, ptr)
	require.Equal(t, float64(64), readGauge(t, inuseBytes))
	require.Equal(t, float64(1), readGauge(t, inuseObjects))
	require.Equal(t, float64(64), readCounter(t, allocBytes))
	require.Equal(t, float64(1), readCounter(t, allocObjects))

	m.Free(ptr, 64)
	require.Equal(t, float64(0), readGauge(t, inuseBytes))
	require.Equal(t, float64(0), readGauge(t, inuseObjects))
	// totals allocated ever are sticky; only the in-use gauges fall back to
	// zero after Free.
	require.Equal(t, float64(64), readCounter(t, allocBytes))
}

func TestInstrumentedDynamicSlabFreeZeroSizeIsNoopForGauges(t *testing.T) {
	d, err := NewDynamicSlab(1)
	require.NoError(t, err)
	defer d.Close()

	inuseBytes := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_inuse_bytes_noop"})
	inuseObjects := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_inuse_objects_noop"})

	m := NewInstrumentedDynamicSlab(d, nil, inuseBytes, nil, inuseObjects)

	ptr := m.Palloc(64)
	require.NotNil(t, ptr)
	require.Equal(t, float64(64), readGauge(t, inuseBytes))
	require.Equal(t, float64(1), readGauge(t, inuseObjects))

	// free(_, 0) is a documented no-op on the upstream allocator; it must
	// not move the in-use gauges even though a real pointer was passed.
	m.Free(ptr, 0)
	require.Equal(t, float64(64), readGauge(t, inuseBytes))
	require.Equal(t, float64(1), readGauge(t, inuseObjects))

	m.Free(ptr, 64)
	require.Equal(t, float64(0), readGauge(t, inuseBytes))
	require.Equal(t, float64(0), readGauge(t, inuseObjects))
}

func TestInstrumentedDynamicSlabToleratesNilCollectors(t *testing.T) {
	d, err := NewDynamicSlab(1)
	require.NoError(t, err)
	defer d.Close()

	m := NewInstrumentedDynamicSlab(d, nil, nil, nil, nil)
	ptr := m.Palloc(32)
	require.NotNil(t, ptr)
	m.Free(ptr, 32)
}

func readGauge(t *testing.T, g prometheus.Gauge) float64 {
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func readCounter(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
