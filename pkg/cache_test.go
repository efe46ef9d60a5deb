// © 2025 omnicache authors. MIT License.
package omnicache

import (
	"math"
	"testing"

	"github.com/Voskan/omnicache/internal/timealgebra"
)

func putF32(buf []byte, v float64) {
	bits := math.Float32bits(float32(v))
	for i := 0; i < 4; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
}

func getF32(buf []byte) float64 {
	var bits uint32
	for i := 0; i < 4; i++ {
		bits |= uint32(buf[i]) << (8 * i)
	}
	return float64(math.Float32frombits(bits))
}

func floatBlock(t *testing.T, out *float64) BlockTemplate[float64] {
	return BlockTemplate[float64]{
		Name:     "value",
		DataType: DataFloat,
		Count:    func(user float64) uint32 { return 1 },
		Write: func(d *Data, user float64) bool {
			if len(d.Data) != 4 {
				t.Fatalf("write buffer size = %d, want 4", len(d.Data))
			}
			putF32(d.Data, user)
			return true
		},
		Read: func(d *Data, user float64) bool {
			if out != nil {
				*out = getF32(d.Data)
			}
			return true
		},
	}
}

func newFloatCache(t *testing.T, out *float64) *Cache[float64] {
	tmpl := CacheTemplate[float64]{
		ID:          "scenario",
		TimeType:    timealgebra.TimeFloat,
		TimeInitial: timealgebra.FromFloat(0),
		TimeFinal:   timealgebra.FromFloat(10),
		TimeStep:    timealgebra.FromFloat(1),
	}
	c, err := New(tmpl, []BlockTemplate[float64]{floatBlock(t, out)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// Scenario 1.
func TestScenarioWriteReadExactAndOutOfRange(t *testing.T) {
	var got float64
	c := newFloatCache(t, &got)

	for _, tt := range []float64{0, 1, 2} {
		if r := c.SampleWrite(timealgebra.FromFloat(tt), tt); r != WriteSuccess {
			t.Fatalf("write(%v) = %v, want SUCCESS", tt, r)
		}
	}

	if r := c.SampleRead(timealgebra.FromFloat(1), 0); r != ReadExact {
		t.Fatalf("read(1) = %v, want EXACT", r)
	}
	if got != 1.0 {
		t.Fatalf("host received %v, want 1.0", got)
	}

	if r := c.SampleRead(timealgebra.FromFloat(5), 0); r != ReadInvalid {
		t.Fatalf("read(5) = %v, want INVALID", r)
	}

	if c.NumSamplesTotal() != 3 {
		t.Fatalf("num_samples_tot = %d, want 3", c.NumSamplesTotal())
	}
	if c.NumSamplesArray() != 3 {
		t.Fatalf("num_samples_array = %d, want 3", c.NumSamplesArray())
	}
}

// Scenario 2. num_samples_array counts populated root slots (0..5), which
// is distinct from num_samples_alloc (the MIN_SAMPLES=10-floored capacity).
func TestScenarioWriteAheadFillsSkipPlaceholders(t *testing.T) {
	c := newFloatCache(t, nil)

	if r := c.SampleWrite(timealgebra.FromFloat(5), 5); r != WriteSuccess {
		t.Fatalf("write(5) = %v", r)
	}

	if c.NumSamplesArray() != 6 {
		t.Fatalf("num_samples_array = %d, want 6", c.NumSamplesArray())
	}
	if c.NumSamplesTotal() != 1 {
		t.Fatalf("num_samples_tot = %d, want 1", c.NumSamplesTotal())
	}
	if c.NumSamplesAlloc() != 10 {
		t.Fatalf("num_samples_alloc = %d, want 10 (MIN_SAMPLES floor)", c.NumSamplesAlloc())
	}
}

// Scenario 4.
func TestScenarioMarkOutdatedThenConsolidate(t *testing.T) {
	c := newFloatCache(t, nil)
	for _, tt := range []float64{0, 1, 2} {
		c.SampleWrite(timealgebra.FromFloat(tt), tt)
	}

	c.MarkOutdated()

	r := c.SampleRead(timealgebra.FromFloat(1), 0)
	if !r.Has(ReadExact) || !r.Has(ReadOutdated) {
		t.Fatalf("read(1) after mark_outdated = %v, want EXACT|OUTDATED", r)
	}

	c.Consolidate(FreeOutdated)
	if c.NumSamplesTotal() != 0 {
		t.Fatalf("num_samples_tot after consolidate = %d, want 0", c.NumSamplesTotal())
	}
}

// Scenario 5.
func TestScenarioClearFromIsMonotone(t *testing.T) {
	c := newFloatCache(t, nil)
	for _, tt := range []float64{0, 1, 2} {
		c.SampleWrite(timealgebra.FromFloat(tt), tt)
	}

	c.SampleClearFrom(timealgebra.FromFloat(1))

	if r := c.SampleRead(timealgebra.FromFloat(0), 0); r != ReadExact {
		t.Fatalf("read(0) after clear_from(1) = %v, want EXACT", r)
	}
	if r := c.SampleRead(timealgebra.FromFloat(1), 0); r != ReadInvalid {
		t.Fatalf("read(1) after clear_from(1) = %v, want INVALID", r)
	}
	if r := c.SampleRead(timealgebra.FromFloat(2), 0); r != ReadInvalid {
		t.Fatalf("read(2) after clear_from(1) = %v, want INVALID", r)
	}
}

func TestWriteFailureClearsValidAndReadReportsInvalid(t *testing.T) {
	tmpl := CacheTemplate[float64]{
		ID:          "fail",
		TimeType:    timealgebra.TimeFloat,
		TimeInitial: timealgebra.FromFloat(0),
		TimeFinal:   timealgebra.FromFloat(10),
		TimeStep:    timealgebra.FromFloat(1),
	}
	blocks := []BlockTemplate[float64]{
		{
			Name:     "value",
			DataType: DataFloat,
			Count:    func(user float64) uint32 { return 1 },
			Write:    func(d *Data, user float64) bool { return false },
		},
	}
	c, err := New(tmpl, blocks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if r := c.SampleWrite(timealgebra.FromFloat(1), 1); r != WriteFailed {
		t.Fatalf("write = %v, want FAILED", r)
	}
	if r := c.SampleRead(timealgebra.FromFloat(1), 0); r != ReadInvalid {
		t.Fatalf("read after failed write = %v, want INVALID", r)
	}
}

func TestDuplicateDeepCopyIsIndependent(t *testing.T) {
	c := newFloatCache(t, nil)
	for _, tt := range []float64{0, 1, 2} {
		c.SampleWrite(timealgebra.FromFloat(tt), tt)
	}

	dup := Duplicate(c, true)
	if dup.NumSamplesTotal() != c.NumSamplesTotal() {
		t.Fatalf("duplicate total = %d, want %d", dup.NumSamplesTotal(), c.NumSamplesTotal())
	}

	dup.SampleClearFrom(timealgebra.FromFloat(0))
	if dup.NumSamplesTotal() != 0 {
		t.Fatalf("duplicate after clear = %d, want 0", dup.NumSamplesTotal())
	}
	if c.NumSamplesTotal() != 3 {
		t.Fatalf("original mutated by duplicate's clear: total = %d, want 3", c.NumSamplesTotal())
	}
}

func TestDuplicateWithoutDataStartsEmptyAndCurrent(t *testing.T) {
	c := newFloatCache(t, nil)
	c.SampleWrite(timealgebra.FromFloat(0), 0)

	dup := Duplicate(c, false)
	if dup.NumSamplesTotal() != 0 {
		t.Fatalf("empty duplicate total = %d, want 0", dup.NumSamplesTotal())
	}
	if !dup.IsCurrent() {
		t.Fatal("empty duplicate should be CURRENT")
	}
}

func TestInterpolationFillsOffGridRead(t *testing.T) {
	tmpl := CacheTemplate[float64]{
		ID:          "interp",
		TimeType:    timealgebra.TimeFloat,
		TimeInitial: timealgebra.FromFloat(0),
		TimeFinal:   timealgebra.FromFloat(10),
		TimeStep:    timealgebra.FromFloat(1),
		Flags:       CacheInterpolate,
	}
	blocks := []BlockTemplate[float64]{
		{
			Name:     "value",
			DataType: DataFloat,
			Flags:    BlockContinuous,
			Count:    func(user float64) uint32 { return 1 },
			Write: func(d *Data, user float64) bool {
				putF32(d.Data, user)
				return true
			},
			Interp: func(d *InterpData) bool {
				if len(d.Target.Data) != 4 {
					return false
				}
				prev := getF32(d.Prev.Data)
				next := getF32(d.Next.Data)
				putF32(d.Target.Data, (prev+next)/2)
				return true
			},
		},
	}
	c, err := New(tmpl, blocks)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.SampleWrite(timealgebra.FromFloat(0), 0)
	c.SampleWrite(timealgebra.FromFloat(1), 10)

	r := c.SampleRead(timealgebra.FromFloat(0.5), 0)
	if !r.Has(ReadInterp) {
		t.Fatalf("read(0.5) = %v, want INTERP", r)
	}
}
