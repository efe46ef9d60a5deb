// Package bench provides reproducible micro-benchmarks for OmniCache.
// Run via: go test ./bench -bench=. -benchmem -cpu 1
//
// All benchmarks share one block shape (a single FLOAT block, one element
// per sample) and a deterministic dataset of sample times, so results are
// comparable across versions. We measure:
//
//  1. SampleWrite  – write-only workload, on-grid times
//  2. SampleRead   – read-only workload after warm-up
//  3. Consolidate  – FREE_OUTDATED sweep cost over a populated cache
//
// © 2025 omnicache authors. MIT License.
package bench

import (
	"math/rand"
	"testing"

	omnicache "github.com/Voskan/omnicache/pkg"

	"github.com/Voskan/omnicache/internal/timealgebra"
)

const (
	numSamples = 1 << 16 // dataset size
	tstep      = 1
)

// dataset is a deterministic set of on-grid integer times reused across
// benchmarks to avoid reallocating large slices per run.
var dataset = func() []uint64 {
	arr := make([]uint64, numSamples)
	for i := range arr {
		arr[i] = uint64(i)
	}
	return arr
}()

func newBenchCache() *omnicache.Cache[float64] {
	tmpl := omnicache.CacheTemplate[float64]{
		ID:          "bench",
		TimeType:    timealgebra.TimeInt,
		TimeInitial: timealgebra.FromUint(0),
		TimeFinal:   timealgebra.FromUint(numSamples * 2),
		TimeStep:    timealgebra.FromUint(tstep),
	}
	blocks := []omnicache.BlockTemplate[float64]{
		{
			Name:     "value",
			DataType: omnicache.DataFloat,
			Count:    func(user float64) uint32 { return 1 },
			Write: func(d *omnicache.Data, user float64) bool {
				if len(d.Data) >= 4 {
					putFloat(d.Data, user)
				}
				return true
			},
			Read: func(d *omnicache.Data, user float64) bool { return true },
		},
	}
	c, err := omnicache.New(tmpl, blocks)
	if err != nil {
		panic(err)
	}
	return c
}

func putFloat(buf []byte, v float64) {
	bits := uint32(v)
	for i := 0; i < 4; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
}

func BenchmarkSampleWrite(b *testing.B) {
	c := newBenchCache()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t := dataset[i&(numSamples-1)]
		c.SampleWrite(timealgebra.FromUint(t), float64(t))
	}
}

func BenchmarkSampleRead(b *testing.B) {
	c := newBenchCache()
	for _, t := range dataset {
		c.SampleWrite(timealgebra.FromUint(t), float64(t))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t := dataset[i&(numSamples-1)]
		c.SampleRead(timealgebra.FromUint(t), 0)
	}
}

func BenchmarkConsolidate(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		c := newBenchCache()
		for _, t := range dataset {
			c.SampleWrite(timealgebra.FromUint(t), float64(t))
		}
		c.MarkOutdated()
		b.StartTimer()

		c.Consolidate(omnicache.FreeOutdated)
	}
}

func init() {
	rand.Seed(42)
}
